package handlers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/middleware"
	"github.com/example/uslugi/internal/models"
	"github.com/example/uslugi/internal/ratelimit"
	"github.com/example/uslugi/internal/services"
	"github.com/example/uslugi/internal/utils"
)

const verificationCodeTTL = 10 * time.Minute

// PhoneHandler manages phone-verification endpoints.
type PhoneHandler struct {
	db           *gorm.DB
	sms          *services.SMSService
	requestLimit *ratelimit.Limiter
	checkLimit   *ratelimit.Limiter
}

// NewPhoneHandler constructs a PhoneHandler with its rate-limit tiers.
func NewPhoneHandler(db *gorm.DB, sms *services.SMSService, store *ratelimit.Store) *PhoneHandler {
	return &PhoneHandler{
		db:           db,
		sms:          sms,
		requestLimit: ratelimit.NewPhoneCodeRequestLimiter(store),
		checkLimit:   ratelimit.NewPhoneCodeCheckLimiter(store),
	}
}

type requestCodeRequest struct {
	Phone string `json:"phone"`
}

// RequestCode issues a verification code for the user's phone and delivers
// it via SMS. Limited to 5 requests per 15 minutes per identity.
func (h *PhoneHandler) RequestCode(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	var req requestCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	phone := req.Phone
	if phone == "" {
		phone = user.Phone
	}
	if phone == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phone is required")
	}

	identity := ratelimit.Identity{UserID: &user.ID, Phone: phone, IP: utils.ClientIP(c)}
	if res := h.requestLimit.Check(identity); !res.Success {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":    false,
			"error":      "too many code requests, please try again later",
			"reset_time": res.ResetTime,
			"remaining":  res.Remaining,
		})
	}

	code, err := generateVerificationCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate verification code")
	}

	verification := models.PhoneVerification{
		UserID:    user.ID,
		Phone:     phone,
		Code:      code,
		ExpiresAt: time.Now().Add(verificationCodeTTL),
	}

	if err := h.db.Create(&verification).Error; err != nil {
		return err
	}

	if err := h.sms.SendCode(phone, code); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to send verification code")
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"expires_at": verification.ExpiresAt,
	})
}

type checkCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// CheckCode validates a submitted code against the newest one issued for the
// phone and stamps the user's profile when it matches. Limited to 3 checks
// per hour per identity.
func (h *PhoneHandler) CheckCode(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	var req checkCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	phone := req.Phone
	if phone == "" {
		phone = user.Phone
	}
	if phone == "" || req.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phone and code are required")
	}

	identity := ratelimit.Identity{UserID: &user.ID, Phone: phone, IP: utils.ClientIP(c)}
	if res := h.checkLimit.Check(identity); !res.Success {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":    false,
			"error":      "too many verification attempts, please try again later",
			"reset_time": res.ResetTime,
			"remaining":  res.Remaining,
		})
	}

	var verification models.PhoneVerification
	err := h.db.Where("user_id = ? AND phone = ?", user.ID, phone).
		Order("created_at DESC").
		First(&verification).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "verification code not found")
		}
		return err
	}

	if verification.UsedAt != nil {
		return fiber.NewError(fiber.StatusBadRequest, "verification code already used")
	}

	if verification.ExpiresAt.Before(time.Now()) {
		return fiber.NewError(fiber.StatusBadRequest, "verification code expired")
	}

	if verification.Code != req.Code {
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}

	now := time.Now()
	verification.Verified = true
	verification.UsedAt = &now
	if err := h.db.Save(&verification).Error; err != nil {
		return err
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"phone":             phone,
		"phone_verified_at": now,
	}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"verified": true,
	})
}

func generateVerificationCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
