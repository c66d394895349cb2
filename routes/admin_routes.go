package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mutisya87/trainer_marketplace/handlers"
	"github.com/mutisya87/trainer_marketplace/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Get("/disputes", handlers.GetOpenDisputes)
	admin.Post("/disputes/:bookingId/resolve", handlers.ResolveDispute)
	admin.Get("/reconciliation", handlers.GetReconciliationQueue)

	reports := admin.Group("/reports")
	reports.Get("/tax", handlers.GetTaxReport)

	admin.Post("/trainers/:trainerId/approve", handlers.ApproveTrainer)
}
