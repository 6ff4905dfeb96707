package services

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/models"
	"github.com/example/uslugi/internal/ratelimit"
)

const (
	// Accounts younger than this are treated as new for tier selection.
	newAccountAge = 7 * 24 * time.Hour

	// Cooldown before the same author may re-review the same provider.
	cooldownVerified   = 14 * 24 * time.Hour
	cooldownUnverified = 30 * 24 * time.Hour
)

// PolicyError is a user-facing rejection from the review policy chain. It
// carries the HTTP status and the extra payload fields the handler returns.
type PolicyError struct {
	Status        int
	Message       string
	ResetTime     *time.Time
	Remaining     *int
	PhoneVerified *bool
}

func (e *PolicyError) Error() string {
	return e.Message
}

// ReviewSubmission is one inbound review request with the caller-resolved
// identity attached.
type ReviewSubmission struct {
	Author       *models.User
	ProviderID   uuid.UUID
	Rating       int
	Text         string
	CaptchaToken string
	IPAddress    string
}

// ReviewPolicy runs the full review-submission check chain: limiter tiers
// selected from user trust signals, CAPTCHA, target and self checks, the
// cooldown-window lookup, and finally the upsert. Every consumed limiter
// counts the attempt even when a later step rejects the request.
type ReviewPolicy struct {
	db         *gorm.DB
	captcha    *CaptchaService
	standard   *ratelimit.Limiter
	suspicious *ratelimit.Limiter
}

// NewReviewPolicy wires the policy with its limiter tiers over the store.
func NewReviewPolicy(db *gorm.DB, captcha *CaptchaService, store *ratelimit.Store) *ReviewPolicy {
	return &ReviewPolicy{
		db:         db,
		captcha:    captcha,
		standard:   ratelimit.NewReviewSubmitLimiter(store),
		suspicious: ratelimit.NewSuspiciousLimiter(store),
	}
}

// Submit runs the check chain and upserts the review on success. Returns the
// created or updated row, or a *PolicyError describing the rejection.
func (p *ReviewPolicy) Submit(sub ReviewSubmission) (*models.Review, error) {
	author := sub.Author
	identity := ratelimit.Identity{UserID: &author.ID, IP: sub.IPAddress}

	var priorReviews int64
	if err := p.db.Model(&models.Review{}).Where("author_id = ?", author.ID).Count(&priorReviews).Error; err != nil {
		return nil, err
	}

	isNew := time.Since(author.CreatedAt) < newAccountAge
	verified := author.PhoneVerified()

	// Low-trust accounts pass the stricter tier first; its counter is
	// consumed even if the standard check then fails.
	if (isNew && priorReviews == 0) || !verified {
		if res := p.suspicious.Check(identity); !res.Success {
			return nil, limitError("too many review attempts from a new or unverified account, please try again later", res)
		}
	}

	if res := p.standard.Check(identity); !res.Success {
		return nil, limitError("review limit reached, please try again later", res)
	}

	if err := p.captcha.Verify(sub.CaptchaToken, sub.IPAddress); err != nil {
		return nil, &PolicyError{Status: http.StatusBadRequest, Message: "captcha verification failed"}
	}

	var provider models.Provider
	if err := p.db.First(&provider, "id = ?", sub.ProviderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PolicyError{Status: http.StatusNotFound, Message: "provider not found"}
		}
		return nil, err
	}

	if provider.OwnerID == author.ID {
		return nil, &PolicyError{Status: http.StatusBadRequest, Message: "cannot review your own listing"}
	}

	window := cooldownUnverified
	if verified {
		window = cooldownVerified
	}

	var existing models.Review
	err := p.db.Where("author_id = ? AND provider_id = ?", author.ID, provider.ID).First(&existing).Error
	hasExisting := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	if hasExisting && now.Sub(existing.CreatedAt) < window {
		return nil, cooldownError(window, verified)
	}

	review, err := p.upsert(&provider, author, sub, &existing, hasExisting, now)
	if err != nil {
		return nil, err
	}

	if err := p.refreshProviderRating(&provider); err != nil {
		return nil, err
	}

	return review, nil
}

// upsert updates the existing (author, provider) row in place or inserts a
// new one; the pair never has more than one row. CreatedAt is refreshed on
// update so the cooldown window anchors to the latest submission.
func (p *ReviewPolicy) upsert(provider *models.Provider, author *models.User, sub ReviewSubmission, existing *models.Review, hasExisting bool, now time.Time) (*models.Review, error) {
	if hasExisting {
		existing.Rating = sub.Rating
		existing.Text = sub.Text
		existing.Status = models.ReviewStatusPublished
		existing.CreatedAt = now
		if err := p.db.Save(existing).Error; err != nil {
			return nil, err
		}
		return existing, nil
	}

	review := models.Review{
		AuthorID:   author.ID,
		ProviderID: provider.ID,
		Rating:     sub.Rating,
		Text:       sub.Text,
		Status:     models.ReviewStatusPublished,
	}
	if err := p.db.Create(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (p *ReviewPolicy) refreshProviderRating(provider *models.Provider) error {
	type aggregate struct {
		Avg   float64
		Count int64
	}
	var agg aggregate
	err := p.db.Model(&models.Review{}).
		Where("provider_id = ? AND status = ?", provider.ID, models.ReviewStatusPublished).
		Select("COALESCE(AVG(rating), 0) as avg, COUNT(*) as count").
		Scan(&agg).Error
	if err != nil {
		return err
	}

	return p.db.Model(provider).Updates(map[string]interface{}{
		"rating_avg":   agg.Avg,
		"rating_count": agg.Count,
	}).Error
}

func limitError(message string, res ratelimit.Result) *PolicyError {
	reset := res.ResetTime
	remaining := res.Remaining
	return &PolicyError{
		Status:    http.StatusTooManyRequests,
		Message:   message,
		ResetTime: &reset,
		Remaining: &remaining,
	}
}

func cooldownError(window time.Duration, verified bool) *PolicyError {
	days := int(window / (24 * time.Hour))
	message := fmt.Sprintf("you can review this provider again in up to %d days", days)
	if !verified {
		message += "; verify your phone number to shorten the wait to 14 days"
	}
	v := verified
	return &PolicyError{
		Status:        http.StatusTooManyRequests,
		Message:       message,
		PhoneVerified: &v,
	}
}
