package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/voxrelay/voxrelay-backend/internal/api/handlers"
	"github.com/voxrelay/voxrelay-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services) {
	// API routes
	api := app.Group("/api/v1")

	// Call management
	api.Post("/calls", handlers.CreateCall(svc))
	api.Get("/calls/:id", handlers.GetCall(svc))

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "voxrelay-backend",
		})
	})

	// ========================================
	// WebSocket routes (telephony media stream)
	// ========================================

	app.Use("/media-stream/:sessionID", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	mediaStream := handlers.NewMediaStreamHandler(svc)
	app.Get("/media-stream/:sessionID", websocket.New(mediaStream.Handle))
}
