package models

import (
	"time"
)

// Notification statuses.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// Notification is a queued outbound message picked up by the dispatcher.
type Notification struct {
	BaseModel
	Kind        string     `gorm:"index" json:"kind"`
	ChatID      string     `json:"chat_id"`
	Text        string     `json:"text"`
	Status      string     `gorm:"index;default:pending" json:"status"`
	Attempts    int        `json:"attempts"`
	ScheduledAt time.Time  `gorm:"index" json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`
	LastError   string     `json:"last_error"`
}
