package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/middleware"
	"github.com/example/uslugi/internal/models"
	"github.com/example/uslugi/internal/utils"
)

// ProviderHandler manages listing endpoints.
type ProviderHandler struct {
	db *gorm.DB
}

// NewProviderHandler constructs ProviderHandler.
func NewProviderHandler(db *gorm.DB) *ProviderHandler {
	return &ProviderHandler{db: db}
}

// List returns active providers filtered by category, city, and search term.
func (h *ProviderHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Provider{}).Where("is_active = ?", true)

	if category := c.Query("category"); category != "" {
		query = query.Joins("JOIN categories ON categories.id = providers.category_id").
			Where("categories.slug = ?", category)
	}

	if city := c.Query("city"); city != "" {
		query = query.Where("providers.city = ?", city)
	}

	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("providers.name ILIKE ? OR providers.description ILIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var providers []models.Provider
	if err := query.Preload("Category").
		Order("rating_avg DESC, rating_count DESC").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&providers).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"providers": providers,
		"total":     total,
		"page":      pg.Page,
		"limit":     pg.Limit,
	})
}

// Get returns one provider with its category.
func (h *ProviderHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	var provider models.Provider
	if err := h.db.Preload("Category").First(&provider, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "provider not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"provider": provider,
	})
}

type providerRequest struct {
	CategoryID  string  `json:"category_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	City        string  `json:"city"`
	District    string  `json:"district"`
	Phone       string  `json:"phone"`
	PriceFrom   float64 `json:"price_from"`
	Currency    string  `json:"currency"`
}

// Create publishes a new listing owned by the authenticated user.
func (h *ProviderHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req providerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.City) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name and city are required")
	}

	provider := models.Provider{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		City:        req.City,
		District:    req.District,
		Phone:       req.Phone,
		PriceFrom:   req.PriceFrom,
		Currency:    req.Currency,
		IsActive:    true,
	}

	if provider.Currency == "" {
		provider.Currency = "UZS"
	}

	if req.CategoryID != "" {
		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid category id")
		}
		var category models.Category
		if err := h.db.First(&category, "id = ?", categoryID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "category not found")
		}
		provider.CategoryID = &category.ID
	}

	if err := h.db.Create(&provider).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"provider": provider,
	})
}

// Update modifies a listing; only the owner may update it.
func (h *ProviderHandler) Update(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	var provider models.Provider
	if err := h.db.First(&provider, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "provider not found")
		}
		return err
	}

	if provider.OwnerID != userID {
		return fiber.NewError(fiber.StatusForbidden, "not the listing owner")
	}

	var req providerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != "" {
		provider.Name = req.Name
	}
	if req.Description != "" {
		provider.Description = req.Description
	}
	if req.City != "" {
		provider.City = req.City
	}
	if req.District != "" {
		provider.District = req.District
	}
	if req.Phone != "" {
		provider.Phone = req.Phone
	}
	if req.PriceFrom > 0 {
		provider.PriceFrom = req.PriceFrom
	}
	if req.Currency != "" {
		provider.Currency = req.Currency
	}

	if err := h.db.Save(&provider).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"provider": provider,
	})
}

// Delete deactivates a listing; only the owner may delete it.
func (h *ProviderHandler) Delete(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	var provider models.Provider
	if err := h.db.First(&provider, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "provider not found")
		}
		return err
	}

	if provider.OwnerID != userID {
		return fiber.NewError(fiber.StatusForbidden, "not the listing owner")
	}

	if err := h.db.Model(&provider).Update("is_active", false).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListCategories returns all active categories.
func (h *ProviderHandler) ListCategories(c *fiber.Ctx) error {
	var categories []models.Category
	if err := h.db.Where("is_active = ?", true).Order("name ASC").Find(&categories).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"categories": categories,
	})
}

type categoryRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreateCategory adds a category (admin only, enforced by routing).
func (h *ProviderHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" || req.Slug == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name and slug are required")
	}

	category := models.Category{
		Name:     req.Name,
		Slug:     strings.ToLower(req.Slug),
		IsActive: true,
	}

	if err := h.db.Create(&category).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"category": category,
	})
}
