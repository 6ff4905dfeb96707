package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking statuses.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Booking is a customer's appointment with a provider.
type Booking struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User        *User     `json:"user,omitempty"`
	ProviderID  uuid.UUID `gorm:"type:uuid;index" json:"provider_id"`
	Provider    *Provider `json:"provider,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	Notes       string    `json:"notes"`
}
