package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mutisya87/trainer_marketplace/handlers"
	"github.com/mutisya87/trainer_marketplace/middleware"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/payments/webhook", handlers.HandleGatewayWebhook)

	// The gateway redirect arrives without a JWT; the single-use state
	// token is what binds the callback to a trainer.
	api.Get("/payouts/connect/callback", handlers.ConnectCallback)

	payout := api.Group("/payouts", middleware.Protected(), middleware.TrainerRequired())
	payout.Post("/connect", handlers.InitiateConnect)
	payout.Get("/account", handlers.GetPayoutAccountStatus)
	payout.Delete("/account", handlers.DisconnectPayoutAccount)
	payout.Get("/pending", handlers.GetPendingEarnings)
	payout.Post("/request", handlers.RequestPayout)
	payout.Get("/statements", handlers.GetMyStatements)
}
