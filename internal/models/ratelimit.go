package models

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitEntry is a sliding-window counter for one rate-limited action.
// A row is considered the same counter as an incoming check when the action
// matches and any one of the identity columns (user, phone, IP) matches a
// key supplied by the caller.
type RateLimitEntry struct {
	BaseModel
	Action      string     `gorm:"index" json:"action"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Phone       string     `gorm:"index" json:"phone"`
	IPAddress   string     `gorm:"index" json:"ip_address"`
	Count       int        `json:"count"`
	WindowStart time.Time  `json:"window_start"`
	ExpiresAt   time.Time  `gorm:"index" json:"expires_at"`
}
