package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mutisya87/trainer_marketplace/handlers"
	"github.com/mutisya87/trainer_marketplace/middleware"
)

func PublicRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/trainers", handlers.ListApprovedTrainers)
	api.Get("/trainers/:trainerId", handlers.GetTrainerProfile)

	profile := api.Group("/trainer/profile", middleware.Protected(), middleware.TrainerRequired())
	profile.Get("", handlers.GetMyTrainerProfile)
	profile.Put("", handlers.UpdateMyTrainerProfile)
}
