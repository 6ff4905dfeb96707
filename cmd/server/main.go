package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/uslugi/internal/config"
	"github.com/example/uslugi/internal/database"
	"github.com/example/uslugi/internal/routes"
	"github.com/example/uslugi/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName: "Uslugi Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	notifier := services.NewNotifier(db, telegram, 30*time.Second)
	notifier.Start()
	defer notifier.Stop()

	routes.Register(app, db, cfg, notifier)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
