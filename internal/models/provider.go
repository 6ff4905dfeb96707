package models

import (
	"github.com/google/uuid"
)

// Provider is a published service listing (plumber, tutor, cleaner, ...).
type Provider struct {
	BaseModel
	OwnerID     uuid.UUID  `gorm:"type:uuid;index" json:"owner_id"`
	Owner       *User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CategoryID  *uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	Category    *Category  `json:"category,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	City        string     `gorm:"index" json:"city"`
	District    string     `json:"district"`
	Phone       string     `json:"phone"`
	PriceFrom   float64    `json:"price_from"`
	Currency    string     `json:"currency"`
	IsActive    bool       `json:"is_active"`
	RatingAvg   float64    `json:"rating_avg"`
	RatingCount int        `json:"rating_count"`
	Reviews     []Review   `json:"reviews,omitempty"`
}

// Category groups providers (repairs, beauty, tutoring, ...).
type Category struct {
	BaseModel
	Name     string `gorm:"uniqueIndex" json:"name"`
	Slug     string `gorm:"uniqueIndex" json:"slug"`
	IsActive bool   `json:"is_active"`
}
