package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/uslugi/internal/models"
	"github.com/example/uslugi/internal/ratelimit"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Provider{},
		&models.Review{},
		&models.RateLimitEntry{},
		&models.Notification{},
	))

	return db
}

// captchaServer fakes the verification endpoint with a fixed score.
func captchaServer(t *testing.T, success bool, score float64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success": %t, "score": %g}`, success, score)
	}))
	t.Cleanup(server.Close)
	return server
}

func newPolicy(t *testing.T, db *gorm.DB, captchaSuccess bool, captchaScore float64) *ReviewPolicy {
	t.Helper()

	server := captchaServer(t, captchaSuccess, captchaScore)
	captcha := NewCaptchaService("test-secret", server.URL, 0.5, false)
	return NewReviewPolicy(db, captcha, ratelimit.NewStore(db))
}

func createUser(t *testing.T, db *gorm.DB, phone string, age time.Duration, verified bool) *models.User {
	t.Helper()

	user := models.User{
		FirstName:   "Test",
		Phone:       phone,
		DisplayName: "Test User",
	}
	if verified {
		now := time.Now()
		user.PhoneVerifiedAt = &now
	}
	require.NoError(t, db.Create(&user).Error)

	if age > 0 {
		require.NoError(t, db.Model(&user).Update("created_at", time.Now().Add(-age)).Error)
		user.CreatedAt = time.Now().Add(-age)
	}

	return &user
}

func createProvider(t *testing.T, db *gorm.DB, owner *models.User) *models.Provider {
	t.Helper()

	provider := models.Provider{
		OwnerID:  owner.ID,
		Name:     "Test Service",
		City:     "Tashkent",
		IsActive: true,
	}
	require.NoError(t, db.Create(&provider).Error)
	return &provider
}

func submission(author *models.User, providerID uuid.UUID, rating int) ReviewSubmission {
	return ReviewSubmission{
		Author:       author,
		ProviderID:   providerID,
		Rating:       rating,
		Text:         "great work, fast and professional",
		CaptchaToken: "token",
		IPAddress:    "203.0.113.7",
	}
}

func expireCounters(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Model(&models.RateLimitEntry{}).
		Where("1 = 1").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)
}

func TestSubmitCreatesReview(t *testing.T) {
	db := newTestDB(t)
	policy := newPolicy(t, db, true, 0.9)

	owner := createUser(t, db, "+998900000001", 90*24*time.Hour, true)
	author := createUser(t, db, "+998900000002", 90*24*time.Hour, true)
	provider := createProvider(t, db, owner)

	sub := submission(author, provider.ID, 5)

	review, err := policy.Submit(sub)
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)
	assert.Equal(t, models.ReviewStatusPublished, review.Status)

	var fresh models.Provider
	require.NoError(t, db.First(&fresh, "id = ?", provider.ID).Error)
	assert.Equal(t, float64(5), fresh.RatingAvg)
	assert.Equal(t, 1, fresh.RatingCount)
}

func TestSuspiciousTierForNewUnverifiedAccount(t *testing.T) {
	db := newTestDB(t)
	policy := newPolicy(t, db, true, 0.9)

	owner := createUser(t, db, "+998900000001", 90*24*time.Hour, true)
	// Created 2 days ago, zero reviews, unverified.
	author := createUser(t, db, "+998900000002", 2*24*time.Hour, false)
	providerA := createProvider(t, db, owner)
	providerB := createProvider(t, db, owner)

	sub := submission(author, providerA.ID, 4)
	_, err := policy.Submit(sub)
	require.NoError(t, err)

	// A second submission within the hour trips the suspicious tier even
	// though the standard 5/day limiter still has capacity.
	sub.ProviderID = providerB.ID
	_, err = policy.Submit(sub)
	require.Error(t, err)

	policyErr, ok := err.(*PolicyError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, policyErr.Status)
	assert.Contains(t, policyErr.Message, "new or unverified")
	require.NotNil(t, policyErr.ResetTime)
	require.NotNil(t, policyErr.Remaining)
	assert.Equal(t, 0, *policyErr.Remaining)
}

func TestStandardLimitForTrustedAccount(t *testing.T) {
	db := newTestDB(t)
	policy := newPolicy(t, db, true, 0.9)

	owner := createUser(t, db, "+998900000001", 90*24*time.Hour, true)
	author := createUser(t, db, "+998900000002", 90*24*time.Hour, true)

	// Trusted accounts skip the suspicious tier entirely: five reviews of
	// five different providers pass, the sixth hits the standard limit.
	for i := 0; i < 5; i++ {
		provider := createProvider(t, db, owner)
		sub := submission(author, provider.ID, 4)
		_, err := policy.Submit(sub)
		require.NoError(t, err, "submission %d", i+1)
	}

	provider := createProvider(t, db, owner)
	sub := submission(author, provider.ID, 4)
	_, err := policy.Submit(sub)
	require.Error(t, err)

	policyErr, ok := err.(*PolicyError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, policyErr.Status)
	assert.Contains(t, policyErr.Message, "review limit")
}

func TestCaptchaFailureStillChargesCounters(t *testing.T) {
	db := newTestDB(t)
	// Score below the 0.5 threshold.
	policy := newPolicy(t, db, true, 0.3)

	owner := createUser(t, db, "+998900000001", 90*24*time.Hour, true)
	author := createUser(t, db, "+998900000002", 90*24*time.Hour, true)
	provider := createProvider(t, db, owner)

	sub := submission(author, provider.ID, 4)
	_, err := policy.Submit(sub)
	require.Error(t, err)

	policyErr, ok := err.(*PolicyError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, policyErr.Status)
	assert.Contains(t, policyErr.Message, "captcha")

	// The limiter ran before the CAPTCHA call, so the attempt was counted.
	var entry models.RateLimitEntry
	require.NoError(t, db.First(&entry, "action = ?", ratelimit.ActionReviewSubmit).Error)
	assert.Equal(t, 1, entry.Count)
}

func TestSelfReviewRejected(t *testing.T) {
	db := newTestDB(t)
	policy := newPolicy(t, db, true, 0.9)

	author := createUser(t, db, "+998900000001", 90*24*time.Hour, true)
	provider := createProvider(t, db, author)

	sub := submission(author, provider.ID, 5)
	_, err := policy.Submit(sub)
	require.Error(t, err)

	policyErr, ok := err.(*PolicyError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, policyErr.Status)
	assert.Contains(t, policyErr.Message, "own listing")
}

func TestUnknownProviderRejected(t *testing.T) {
	db := newTestDB(t)
	policy := newPolicy(t, db, true, 0.9)

	author := createUser(t, db, "+998900000001", 90*24*time.Hour, true)
	other := createUser(t, db, "+998900000002", 90*24*time.Hour, true)

	sub := submission(author, other.ID, 5)

	_, err := policy.Submit(sub)
	require.Error(t, err)

	policyErr, ok := err.(*PolicyError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, policyErr.Status)
}

func TestCooldownRejectsThenAccepts(t *testing.T) {
	db := newTestDB(t)
	policy := newPolicy(t, db, true, 0.9)

	owner := createUser(t, db, "+998900000001", 90*24*time.Hour, true)
	author := createUser(t, db, "+998900000002", 90*24*time.Hour, true)
	provider := createProvider(t, db, owner)

	sub := submission(author, provider.ID, 5)
	_, err := policy.Submit(sub)
	require.NoError(t, err)

	// Immediate re-submission: inside the 14-day verified window.
	sub.Rating = 2
	_, err = policy.Submit(sub)
	require.Error(t, err)

	policyErr, ok := err.(*PolicyError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, policyErr.Status)
	require.NotNil(t, policyErr.PhoneVerified)
	assert.True(t, *policyErr.PhoneVerified)

	// 15 days later the window has passed; the row is updated, not duplicated.
	require.NoError(t, db.Model(&models.Review{}).
		Where("author_id = ?", author.ID).
		Update("created_at", time.Now().Add(-15*24*time.Hour)).Error)

	review, err := policy.Submit(sub)
	require.NoError(t, err)
	assert.Equal(t, 2, review.Rating)

	var count int64
	require.NoError(t, db.Model(&models.Review{}).
		Where("author_id = ? AND provider_id = ?", author.ID, provider.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCooldownWindowDependsOnVerification(t *testing.T) {
	db := newTestDB(t)
	policy := newPolicy(t, db, true, 0.9)

	owner := createUser(t, db, "+998900000001", 90*24*time.Hour, true)
	author := createUser(t, db, "+998900000002", 90*24*time.Hour, false)
	provider := createProvider(t, db, owner)

	sub := submission(author, provider.ID, 5)
	_, err := policy.Submit(sub)
	require.NoError(t, err)

	// Backdate the review 15 days and clear the hourly counters.
	require.NoError(t, db.Model(&models.Review{}).
		Where("author_id = ?", author.ID).
		Update("created_at", time.Now().Add(-15*24*time.Hour)).Error)
	expireCounters(t, db)

	// Unverified: 30-day window still blocks, and the message suggests
	// verifying the phone.
	_, err = policy.Submit(sub)
	require.Error(t, err)

	policyErr, ok := err.(*PolicyError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, policyErr.Status)
	require.NotNil(t, policyErr.PhoneVerified)
	assert.False(t, *policyErr.PhoneVerified)
	assert.Contains(t, policyErr.Message, "verify your phone")

	// Verify the phone: the same review is now outside the 14-day window.
	now := time.Now()
	require.NoError(t, db.Model(author).Update("phone_verified_at", now).Error)
	author.PhoneVerifiedAt = &now
	expireCounters(t, db)

	_, err = policy.Submit(sub)
	require.NoError(t, err)
}
