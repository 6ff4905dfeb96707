package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/middleware"
	"github.com/example/uslugi/internal/models"
	"github.com/example/uslugi/internal/services"
	"github.com/example/uslugi/internal/utils"
)

const (
	reviewTextMinLen = 10
	reviewTextMaxLen = 1000
)

// ReviewHandler manages review submission and listing.
type ReviewHandler struct {
	db       *gorm.DB
	policy   *services.ReviewPolicy
	notifier *services.Notifier
}

// NewReviewHandler constructs a ReviewHandler.
func NewReviewHandler(db *gorm.DB, policy *services.ReviewPolicy, notifier *services.Notifier) *ReviewHandler {
	return &ReviewHandler{db: db, policy: policy, notifier: notifier}
}

type submitReviewRequest struct {
	Rating       int    `json:"rating"`
	Text         string `json:"text"`
	CaptchaToken string `json:"captcha_token"`
}

// Submit handles POST /providers/:id/reviews. Payload validation runs before
// any policy check; the policy chain then charges limiter counters, verifies
// the CAPTCHA, and enforces the cooldown before the upsert.
func (h *ReviewHandler) Submit(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	providerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	var req submitReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if fields := validateReview(req); len(fields) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "validation failed",
			"fields":  fields,
		})
	}

	var author models.User
	if err := h.db.First(&author, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	review, err := h.policy.Submit(services.ReviewSubmission{
		Author:       &author,
		ProviderID:   providerID,
		Rating:       req.Rating,
		Text:         req.Text,
		CaptchaToken: req.CaptchaToken,
		IPAddress:    utils.ClientIP(c),
	})
	if err != nil {
		var policyErr *services.PolicyError
		if errors.As(err, &policyErr) {
			return writePolicyError(c, policyErr)
		}
		return err
	}

	var provider models.Provider
	if err := h.db.First(&provider, "id = ?", review.ProviderID).Error; err == nil {
		text := services.FormatReviewAlert(provider.Name, author.DisplayName, review.Rating)
		if err := h.notifier.EnqueueAdmin("review_published", text); err != nil {
			log.Printf("[Review] failed to enqueue admin alert: %v", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"review":  review,
	})
}

// ListForProvider returns published reviews for a provider, newest first.
func (h *ReviewHandler) ListForProvider(c *fiber.Ctx) error {
	providerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	pg := utils.ParsePagination(c)

	var total int64
	query := h.db.Model(&models.Review{}).
		Where("provider_id = ? AND status = ?", providerID, models.ReviewStatusPublished)
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var reviews []models.Review
	if err := query.Preload("Author").
		Order("created_at DESC").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&reviews).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"reviews": reviews,
		"total":   total,
		"page":    pg.Page,
		"limit":   pg.Limit,
	})
}

func validateReview(req submitReviewRequest) map[string]string {
	fields := make(map[string]string)
	if req.Rating < 1 || req.Rating > 5 {
		fields["rating"] = "rating must be between 1 and 5"
	}
	if len(req.Text) < reviewTextMinLen {
		fields["text"] = "text must be at least 10 characters"
	} else if len(req.Text) > reviewTextMaxLen {
		fields["text"] = "text must be at most 1000 characters"
	}
	return fields
}

func writePolicyError(c *fiber.Ctx, policyErr *services.PolicyError) error {
	payload := fiber.Map{
		"success": false,
		"error":   policyErr.Message,
	}
	if policyErr.ResetTime != nil {
		payload["reset_time"] = policyErr.ResetTime
	}
	if policyErr.Remaining != nil {
		payload["remaining"] = policyErr.Remaining
	}
	if policyErr.PhoneVerified != nil {
		payload["phone_verified"] = policyErr.PhoneVerified
	}
	return c.Status(policyErr.Status).JSON(payload)
}
