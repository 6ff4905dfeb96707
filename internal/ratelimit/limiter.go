package ratelimit

import (
	"log"
	"time"
)

// Action tags for the predefined limiter tiers.
const (
	ActionReviewSubmit     = "review_submit"
	ActionPhoneCodeRequest = "phone_code_request"
	ActionPhoneCodeCheck   = "phone_code_check"
	ActionSuspicious       = "suspicious_activity"
)

// Result is the outcome of a single limit check.
type Result struct {
	Success   bool      `json:"success"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
	Error     string    `json:"error,omitempty"`
}

// Limiter enforces "at most Max actions per Window" for one action tag.
// Checking always mutates the store: purge, then either an increment or an
// insert. The attempt is charged even if the caller later rejects the
// request for other reasons.
type Limiter struct {
	store  *Store
	Action string
	Window time.Duration
	Max    int
}

// New builds a limiter over the given store.
func New(store *Store, action string, window time.Duration, max int) *Limiter {
	return &Limiter{store: store, Action: action, Window: window, Max: max}
}

// Predefined tiers.

// NewReviewSubmitLimiter allows 5 review submissions per 24 hours.
func NewReviewSubmitLimiter(store *Store) *Limiter {
	return New(store, ActionReviewSubmit, 24*time.Hour, 5)
}

// NewPhoneCodeRequestLimiter allows 5 code requests per 15 minutes.
func NewPhoneCodeRequestLimiter(store *Store) *Limiter {
	return New(store, ActionPhoneCodeRequest, 15*time.Minute, 5)
}

// NewPhoneCodeCheckLimiter allows 3 code checks per hour.
func NewPhoneCodeCheckLimiter(store *Store) *Limiter {
	return New(store, ActionPhoneCodeCheck, time.Hour, 3)
}

// NewSuspiciousLimiter allows 1 action per hour for low-trust accounts.
func NewSuspiciousLimiter(store *Store) *Limiter {
	return New(store, ActionSuspicious, time.Hour, 1)
}

// Check purges expired counters, then finds and consumes the active counter
// for the identity, creating a fresh one when none exists. Store failures
// fail closed: the request is denied rather than let through.
func (l *Limiter) Check(id Identity) Result {
	now := time.Now()

	if err := l.store.PurgeExpired(now); err != nil {
		return l.failClosed(now, err)
	}

	entry, err := l.store.FindActive(l.Action, id, now)
	if err != nil {
		return l.failClosed(now, err)
	}

	if entry == nil {
		created, err := l.store.Create(l.Action, id, now, l.Window)
		if err != nil {
			return l.failClosed(now, err)
		}
		return Result{
			Success:   true,
			Limit:     l.Max,
			Remaining: l.Max - 1,
			ResetTime: created.ExpiresAt,
		}
	}

	if entry.Count >= l.Max {
		return Result{
			Success:   false,
			Limit:     l.Max,
			Remaining: 0,
			ResetTime: entry.ExpiresAt,
		}
	}

	updated, ok, err := l.store.Consume(entry, l.Max)
	if err != nil {
		return l.failClosed(now, err)
	}
	if !ok {
		// Another request took the last slot between find and consume.
		return Result{
			Success:   false,
			Limit:     l.Max,
			Remaining: 0,
			ResetTime: entry.ExpiresAt,
		}
	}

	return Result{
		Success:   true,
		Limit:     l.Max,
		Remaining: l.Max - updated.Count,
		ResetTime: updated.ExpiresAt,
	}
}

func (l *Limiter) failClosed(now time.Time, err error) Result {
	log.Printf("[RateLimit] %s check failed, denying request: %v", l.Action, err)
	return Result{
		Success:   false,
		Limit:     l.Max,
		Remaining: 0,
		ResetTime: now.Add(l.Window),
		Error:     "rate limit check failed",
	}
}
