package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/models"
	"github.com/example/uslugi/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := h.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalProviders int64
	if err := h.db.Model(&models.Provider{}).Where("is_active = ?", true).Count(&totalProviders).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}

	var reviewCounts []statusCount
	if err := h.db.Model(&models.Review{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&reviewCounts).Error; err != nil {
		return err
	}

	reviewsByStatus := make(map[string]int64)
	for _, sc := range reviewCounts {
		reviewsByStatus[sc.Status] = sc.Count
	}

	var bookingCounts []statusCount
	if err := h.db.Model(&models.Booking{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&bookingCounts).Error; err != nil {
		return err
	}

	bookingsByStatus := make(map[string]int64)
	for _, sc := range bookingCounts {
		bookingsByStatus[sc.Status] = sc.Count
	}

	var pendingNotifications int64
	if err := h.db.Model(&models.Notification{}).
		Where("status = ?", models.NotificationStatusPending).
		Count(&pendingNotifications).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":           totalUsers,
			"total_providers":       totalProviders,
			"reviews_by_status":     reviewsByStatus,
			"bookings_by_status":    bookingsByStatus,
			"pending_notifications": pendingNotifications,
		},
	})
}

// ListReviews returns reviews for moderation, optionally filtered by status.
func (h *AdminHandler) ListReviews(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Review{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var reviews []models.Review
	if err := query.Preload("Author").Preload("Provider").
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

// HideReview pulls a review from public listings.
func (h *AdminHandler) HideReview(c *fiber.Ctx) error {
	return h.setReviewStatus(c, models.ReviewStatusHidden)
}

// RestoreReview republishes a hidden review.
func (h *AdminHandler) RestoreReview(c *fiber.Ctx) error {
	return h.setReviewStatus(c, models.ReviewStatusPublished)
}

func (h *AdminHandler) setReviewStatus(c *fiber.Ctx, status string) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid review id")
	}

	var review models.Review
	if err := h.db.First(&review, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "review not found")
		}
		return err
	}

	if err := h.db.Model(&review).Update("status", status).Error; err != nil {
		return err
	}

	if err := h.refreshProviderRating(review.ProviderID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "status": status})
}

// DeleteReview removes a review permanently.
func (h *AdminHandler) DeleteReview(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid review id")
	}

	var review models.Review
	if err := h.db.First(&review, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "review not found")
		}
		return err
	}

	if err := h.db.Delete(&review).Error; err != nil {
		return err
	}

	if err := h.refreshProviderRating(review.ProviderID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListBookings returns all bookings with user and provider info.
func (h *AdminHandler) ListBookings(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Booking{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var bookings []models.Booking
	if err := query.Preload("User").Preload("Provider").
		Order("created_at DESC").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&bookings).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"bookings": bookings,
		"total":    total,
		"page":     pg.Page,
		"limit":    pg.Limit,
	})
}

func (h *AdminHandler) refreshProviderRating(providerID uuid.UUID) error {
	type aggregate struct {
		Avg   float64
		Count int64
	}
	var agg aggregate
	err := h.db.Model(&models.Review{}).
		Where("provider_id = ? AND status = ?", providerID, models.ReviewStatusPublished).
		Select("COALESCE(AVG(rating), 0) as avg, COUNT(*) as count").
		Scan(&agg).Error
	if err != nil {
		return err
	}

	return h.db.Model(&models.Provider{}).
		Where("id = ?", providerID).
		Updates(map[string]interface{}{
			"rating_avg":   agg.Avg,
			"rating_count": agg.Count,
		}).Error
}
