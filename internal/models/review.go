package models

import (
	"github.com/google/uuid"
)

// Review statuses used by admin moderation.
const (
	ReviewStatusPublished = "published"
	ReviewStatusHidden    = "hidden"
)

// Review is a customer's rating and text for a provider. At most one row
// exists per (author, provider) pair; re-submission updates it in place.
type Review struct {
	BaseModel
	AuthorID   uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_reviews_author_provider" json:"author_id"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ProviderID uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_reviews_author_provider" json:"provider_id"`
	Provider   *Provider `json:"provider,omitempty"`
	Rating     int       `json:"rating"`
	Text       string    `json:"text"`
	Status     string    `gorm:"default:published" json:"status"`
}
