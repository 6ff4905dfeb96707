package ratelimit

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/models"
)

// ErrNoIdentity is returned when a check is attempted without any identity key.
var ErrNoIdentity = errors.New("ratelimit: at least one identity key is required")

// Identity carries the alternative keys a counter can be matched on. Any
// subset may be set; a stored counter matches when its action matches and
// any one of the supplied keys equals the stored value.
type Identity struct {
	UserID *uuid.UUID
	Phone  string
	IP     string
}

func (id Identity) empty() bool {
	return id.UserID == nil && id.Phone == "" && id.IP == ""
}

// Store persists sliding-window counters in the shared relational database.
// It is injected into each Limiter so tests can build isolated stores.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a gorm connection as a counter store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// PurgeExpired deletes every counter whose window has ended. Limiters call
// this at the start of each check, so no background sweep is needed.
func (s *Store) PurgeExpired(now time.Time) error {
	return s.db.Where("expires_at <= ?", now).Delete(&models.RateLimitEntry{}).Error
}

// FindActive returns the most recent non-expired counter for the action
// matching any of the supplied identity keys, or nil when none exists.
func (s *Store) FindActive(action string, id Identity, now time.Time) (*models.RateLimitEntry, error) {
	if id.empty() {
		return nil, ErrNoIdentity
	}

	var match *gorm.DB
	addKey := func(query string, value interface{}) {
		if match == nil {
			match = s.db.Where(query, value)
		} else {
			match = match.Or(query, value)
		}
	}
	if id.UserID != nil {
		addKey("user_id = ?", *id.UserID)
	}
	if id.Phone != "" {
		addKey("phone = ?", id.Phone)
	}
	if id.IP != "" {
		addKey("ip_address = ?", id.IP)
	}

	var entry models.RateLimitEntry
	err := s.db.Where("action = ? AND expires_at > ?", action, now).
		Where(match).
		Order("window_start DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

// Consume increments the counter by one, but only while count is still below
// max. The increment is a single conditional UPDATE so two concurrent
// requests cannot both take the final slot. It returns the refreshed entry
// and whether the increment was applied.
func (s *Store) Consume(entry *models.RateLimitEntry, max int) (*models.RateLimitEntry, bool, error) {
	res := s.db.Model(&models.RateLimitEntry{}).
		Where("id = ? AND count < ?", entry.ID, max).
		Update("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return entry, false, nil
	}

	var fresh models.RateLimitEntry
	if err := s.db.First(&fresh, "id = ?", entry.ID).Error; err != nil {
		return nil, false, err
	}
	return &fresh, true, nil
}

// Create opens a new window for the action with count=1.
func (s *Store) Create(action string, id Identity, now time.Time, window time.Duration) (*models.RateLimitEntry, error) {
	if id.empty() {
		return nil, ErrNoIdentity
	}

	entry := models.RateLimitEntry{
		Action:      action,
		UserID:      id.UserID,
		Phone:       id.Phone,
		IPAddress:   id.IP,
		Count:       1,
		WindowStart: now,
		ExpiresAt:   now.Add(window),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
