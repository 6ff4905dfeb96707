package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/config"
	"github.com/example/uslugi/internal/handlers"
	"github.com/example/uslugi/internal/middleware"
	"github.com/example/uslugi/internal/ratelimit"
	"github.com/example/uslugi/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, notifier *services.Notifier) {
	store := ratelimit.NewStore(db)
	captcha := services.NewCaptchaService(cfg.CaptchaSecret, cfg.CaptchaVerifyURL, cfg.CaptchaMinScore, cfg.CaptchaDisabled)
	sms := services.NewSMSService(cfg.SMSAPIKey, cfg.SMSSender, cfg.SMSDryRun)
	policy := services.NewReviewPolicy(db, captcha, store)

	authHandler := handlers.NewAuthHandler(db, cfg)
	phoneHandler := handlers.NewPhoneHandler(db, sms, store)
	providerHandler := handlers.NewProviderHandler(db)
	reviewHandler := handlers.NewReviewHandler(db, policy, notifier)
	bookingHandler := handlers.NewBookingHandler(db, notifier)
	profileHandler := handlers.NewProfileHandler(db)
	adminHandler := handlers.NewAdminHandler(db)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public catalog
	api.Get("/categories", providerHandler.ListCategories)
	api.Get("/providers", providerHandler.List)
	api.Get("/providers/:id", providerHandler.Get)
	api.Get("/providers/:id/reviews", reviewHandler.ListForProvider)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/phone/request-code", phoneHandler.RequestCode)
	protected.Post("/phone/verify", phoneHandler.CheckCode)

	protected.Post("/providers", providerHandler.Create)
	protected.Put("/providers/:id", providerHandler.Update)
	protected.Delete("/providers/:id", providerHandler.Delete)

	protected.Post("/providers/:id/reviews", reviewHandler.Submit)

	protected.Post("/bookings", bookingHandler.Create)
	protected.Get("/bookings", bookingHandler.ListMine)
	protected.Put("/bookings/:id/status", bookingHandler.UpdateStatus)

	protected.Get("/profile", profileHandler.Get)
	protected.Put("/profile", profileHandler.Update)
	protected.Get("/profile/reviews", profileHandler.MyReviews)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg), middleware.AdminOnly(db))
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/reviews", adminHandler.ListReviews)
	admin.Put("/reviews/:id/hide", adminHandler.HideReview)
	admin.Put("/reviews/:id/restore", adminHandler.RestoreReview)
	admin.Delete("/reviews/:id", adminHandler.DeleteReview)
	admin.Get("/bookings", adminHandler.ListBookings)
	admin.Post("/categories", providerHandler.CreateCategory)
}
