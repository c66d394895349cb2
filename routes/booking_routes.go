package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mutisya87/trainer_marketplace/handlers"
	"github.com/mutisya87/trainer_marketplace/middleware"
)

func BookingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected())
	booking.Get("/me", handlers.GetMyBookings)
	booking.Post("", handlers.CreateBooking)
	booking.Post("/:bookingId/cancel", handlers.CancelBooking)

	trainerBooking := api.Group("/trainer/bookings", middleware.Protected(), middleware.TrainerRequired())
	trainerBooking.Post("/:bookingId/complete", handlers.MarkBookingAsComplete)
}
