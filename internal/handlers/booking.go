package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/middleware"
	"github.com/example/uslugi/internal/models"
	"github.com/example/uslugi/internal/services"
	"github.com/example/uslugi/internal/utils"
)

// BookingHandler manages booking endpoints.
type BookingHandler struct {
	db       *gorm.DB
	notifier *services.Notifier
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(db *gorm.DB, notifier *services.Notifier) *BookingHandler {
	return &BookingHandler{db: db, notifier: notifier}
}

type createBookingRequest struct {
	ProviderID  string    `json:"provider_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes"`
}

// Create books a provider's service for the authenticated user.
func (h *BookingHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	if req.ScheduledAt.IsZero() || req.ScheduledAt.Before(time.Now()) {
		return fiber.NewError(fiber.StatusBadRequest, "scheduled_at must be in the future")
	}

	var provider models.Provider
	if err := h.db.First(&provider, "id = ? AND is_active = ?", providerID, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "provider not found")
		}
		return err
	}

	if provider.OwnerID == userID {
		return fiber.NewError(fiber.StatusBadRequest, "cannot book your own listing")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	booking := models.Booking{
		UserID:      userID,
		ProviderID:  provider.ID,
		ScheduledAt: req.ScheduledAt,
		Status:      models.BookingStatusPending,
		Price:       provider.PriceFrom,
		Currency:    provider.Currency,
		Notes:       req.Notes,
	}

	if err := h.db.Create(&booking).Error; err != nil {
		return err
	}

	alert := services.FormatBookingAlert(provider.Name, user.DisplayName, user.Phone, booking.ScheduledAt, booking.Price, booking.Currency)
	if err := h.notifier.EnqueueAdmin("booking_created", alert); err != nil {
		log.Printf("[Booking] failed to enqueue admin alert: %v", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"booking": booking,
	})
}

// ListMine returns the authenticated user's bookings, newest first.
func (h *BookingHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)

	var bookings []models.Booking
	if err := h.db.Preload("Provider").
		Where("user_id = ?", userID).
		Order("scheduled_at DESC").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&bookings).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"bookings": bookings,
		"page":     pg.Page,
		"limit":    pg.Limit,
	})
}

type updateBookingStatusRequest struct {
	Status string `json:"status"`
}

// Allowed transitions keyed by current status.
var bookingTransitions = map[string][]string{
	models.BookingStatusPending:   {models.BookingStatusConfirmed, models.BookingStatusCancelled},
	models.BookingStatusConfirmed: {models.BookingStatusCompleted, models.BookingStatusCancelled},
}

// UpdateStatus moves a booking through its lifecycle. The provider owner may
// confirm/complete/cancel; the booking customer may only cancel.
func (h *BookingHandler) UpdateStatus(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid booking id")
	}

	var req updateBookingStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var booking models.Booking
	if err := h.db.Preload("Provider").First(&booking, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "booking not found")
		}
		return err
	}

	isOwner := booking.Provider != nil && booking.Provider.OwnerID == userID
	isCustomer := booking.UserID == userID

	if !isOwner && !isCustomer {
		return fiber.NewError(fiber.StatusForbidden, "not a participant of this booking")
	}

	if isCustomer && !isOwner && req.Status != models.BookingStatusCancelled {
		return fiber.NewError(fiber.StatusForbidden, "customers may only cancel")
	}

	if !transitionAllowed(booking.Status, req.Status) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status transition")
	}

	if err := h.db.Model(&booking).Update("status", req.Status).Error; err != nil {
		return err
	}
	booking.Status = req.Status

	return c.JSON(fiber.Map{
		"success": true,
		"booking": booking,
	})
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
