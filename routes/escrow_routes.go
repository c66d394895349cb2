package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mutisya87/trainer_marketplace/handlers"
	"github.com/mutisya87/trainer_marketplace/middleware"
)

func EscrowRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	escrow := api.Group("/escrow", middleware.Protected())
	escrow.Get("/:bookingId", handlers.GetEscrowStatus)
	escrow.Post("/:bookingId/confirm", handlers.ConfirmSession)
	escrow.Post("/:bookingId/dispute", handlers.DisputeSession)
	escrow.Get("/uploads/evidence-signature", handlers.GenerateEvidenceUploadSignature)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws", websocket.New(handlers.ServeSettlementFeed))
}
