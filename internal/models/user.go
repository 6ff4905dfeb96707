package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated marketplace customer or provider owner.
type User struct {
	BaseModel
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Phone           string     `gorm:"uniqueIndex" json:"phone"`
	DisplayName     string     `json:"display_name"`
	PasswordHash    string     `json:"-"`
	IsAdmin         bool       `json:"is_admin"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at"`
	Providers       []Provider `gorm:"foreignKey:OwnerID" json:"providers,omitempty"`
	Bookings        []Booking  `json:"bookings,omitempty"`
	Reviews         []Review   `gorm:"foreignKey:AuthorID" json:"reviews,omitempty"`
}

// PhoneVerified reports whether the user has completed phone verification.
func (u *User) PhoneVerified() bool {
	return u.PhoneVerifiedAt != nil
}

// PhoneVerification keeps track of OTP codes sent to users.
type PhoneVerification struct {
	BaseModel
	UserID    uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Phone     string     `gorm:"index" json:"phone"`
	Code      string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	Verified  bool       `json:"verified"`
	UsedAt    *time.Time `json:"used_at"`
}
