package ratelimit

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/uslugi/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RateLimitEntry{}))

	return db
}

func userIdentity() Identity {
	id := uuid.New()
	return Identity{UserID: &id, IP: "203.0.113.7"}
}

func TestCheckExhaustsWindow(t *testing.T) {
	db := newTestDB(t)
	limiter := New(NewStore(db), "test_action", time.Hour, 3)
	identity := userIdentity()

	for i := 0; i < 3; i++ {
		res := limiter.Check(identity)
		assert.True(t, res.Success, "call %d should pass", i+1)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res := limiter.Check(identity)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Remaining)
	assert.False(t, res.ResetTime.IsZero())

	var count int64
	require.NoError(t, db.Model(&models.RateLimitEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "one counter row per identity and window")
}

func TestCheckResetsAfterWindow(t *testing.T) {
	db := newTestDB(t)
	limiter := New(NewStore(db), "test_action", time.Hour, 2)
	identity := userIdentity()

	limiter.Check(identity)
	limiter.Check(identity)
	assert.False(t, limiter.Check(identity).Success)

	// Force the window to elapse.
	require.NoError(t, db.Model(&models.RateLimitEntry{}).
		Where("action = ?", "test_action").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	res := limiter.Check(identity)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Remaining, "fresh window starts at max-1, not carried over")
}

func TestCheckMatchesAnyIdentityKey(t *testing.T) {
	db := newTestDB(t)
	limiter := New(NewStore(db), "test_action", time.Hour, 5)

	first := Identity{Phone: "+998901112233", IP: "203.0.113.7"}
	res := limiter.Check(first)
	require.True(t, res.Success)
	assert.Equal(t, 4, res.Remaining)

	// Different phone, same IP: counts against the same counter.
	second := Identity{Phone: "+998907778899", IP: "203.0.113.7"}
	res = limiter.Check(second)
	require.True(t, res.Success)
	assert.Equal(t, 3, res.Remaining)

	var count int64
	require.NoError(t, db.Model(&models.RateLimitEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCheckSeparatesActions(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	identity := userIdentity()

	a := New(store, "action_a", time.Hour, 1)
	b := New(store, "action_b", time.Hour, 1)

	assert.True(t, a.Check(identity).Success)
	assert.False(t, a.Check(identity).Success)
	assert.True(t, b.Check(identity).Success, "a's counter must not affect b")
}

func TestCheckFailsClosedOnStoreError(t *testing.T) {
	db := newTestDB(t)
	limiter := New(NewStore(db), "test_action", time.Hour, 5)

	require.NoError(t, db.Migrator().DropTable(&models.RateLimitEntry{}))

	res := limiter.Check(userIdentity())
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Remaining)
	assert.NotEmpty(t, res.Error)
}

func TestCheckRequiresIdentity(t *testing.T) {
	db := newTestDB(t)
	limiter := New(NewStore(db), "test_action", time.Hour, 5)

	res := limiter.Check(Identity{})
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Remaining)
}

func TestConsumeRefusesAtMax(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	now := time.Now()

	entry, err := store.Create("test_action", userIdentity(), now, time.Hour)
	require.NoError(t, err)

	require.NoError(t, db.Model(entry).Update("count", 5).Error)
	entry.Count = 5

	_, ok, err := store.Consume(entry, 5)
	require.NoError(t, err)
	assert.False(t, ok, "conditional increment must not pass the max")
}

func TestPurgeExpiredRemovesOnlyExpired(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	now := time.Now()

	live, err := store.Create("test_action", Identity{IP: "203.0.113.1"}, now, time.Hour)
	require.NoError(t, err)

	dead, err := store.Create("test_action", Identity{IP: "203.0.113.2"}, now, time.Hour)
	require.NoError(t, err)
	require.NoError(t, db.Model(dead).Update("expires_at", now.Add(-time.Second)).Error)

	require.NoError(t, store.PurgeExpired(now))

	var entries []models.RateLimitEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, live.ID, entries[0].ID)
}
