package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/database"
	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
)

type CreateBookingRequest struct {
	TrainerID      string `json:"trainer_id" validate:"omitempty,uuid"`
	SessionKind    string `json:"session_kind" validate:"required,oneof=training camp clinic"`
	PriceCents     int64  `json:"price_cents" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
	ScheduledStart string `json:"scheduled_start" validate:"required"`
	ScheduledEnd   string `json:"scheduled_end" validate:"required"`
}

// CreateBooking is the payment-capture boundary: the booking and its
// holding escrow record are created together, so captured funds are never
// left without an escrow record.
func CreateBooking(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	payerID, _ := uuid.Parse(claims["user_id"].(string))

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	start, err := time.Parse(time.RFC3339, req.ScheduledStart)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_start must be RFC3339"})
	}
	end, err := time.Parse(time.RFC3339, req.ScheduledEnd)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_end must be RFC3339"})
	}

	var trainerID uuid.UUID
	if req.TrainerID != "" {
		trainerID, _ = uuid.Parse(req.TrainerID)
		var profile models.TrainerProfile
		if err := database.DB.First(&profile, "user_id = ?", trainerID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trainer not found"})
		}
	}
	if req.SessionKind == models.SessionKindTraining && trainerID == uuid.Nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Training sessions require a trainer"})
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	booking := models.Booking{
		PayerID:        payerID,
		SessionKind:    req.SessionKind,
		Status:         "confirmed",
		PriceCents:     req.PriceCents,
		Currency:       currency,
		ScheduledStart: &start,
		ScheduledEnd:   &end,
	}
	if trainerID != uuid.Nil {
		booking.TrainerID = &trainerID
	}

	if err := database.DB.Create(&booking).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create booking"})
	}

	rec, err := ledger.Create(c.Context(), booking.ID, trainerID, payerID, req.PriceCents, currency, req.SessionKind)
	if err != nil {
		log.Printf("🔥 CRITICAL: booking %s created but escrow creation failed: %v", booking.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to secure payment"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"booking": booking,
		"escrow": fiber.Map{
			"status":         rec.Status,
			"status_label":   escrow.StatusLabel(rec.Status),
			"gross_amount":   rec.GrossAmount,
			"platform_fee":   rec.PlatformFee,
			"trainer_amount": rec.TrainerAmount,
		},
	})
}

func GetMyBookings(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var bookings []models.Booking
	if err := database.DB.
		Where("payer_id = ? OR trainer_id = ?", userID, userID).
		Order("created_at desc").
		Find(&bookings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch bookings"})
	}
	return c.JSON(bookings)
}

// MarkBookingAsComplete is the trainer's completion action; it starts the
// payer's confirmation window on the escrow record.
func MarkBookingAsComplete(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))
	bookingID := c.Params("bookingId")

	var booking models.Booking
	if err := database.DB.First(&booking, "id = ?", bookingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}

	if booking.TrainerID == nil || *booking.TrainerID != trainerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not the trainer for this booking"})
	}
	if booking.ScheduledEnd != nil && booking.ScheduledEnd.After(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot mark a session as complete before it has ended"})
	}

	rec, err := ledger.MarkSessionComplete(c.Context(), booking.ID)
	if err != nil {
		if errors.Is(err, escrow.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No escrow record for this booking"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark session complete"})
	}

	database.DB.Model(&models.Booking{}).Where("id = ?", booking.ID).Update("status", "completed")

	return c.JSON(fiber.Map{
		"message":             "Session marked as complete. The client can confirm or dispute until the hold window elapses.",
		"status":              rec.Status,
		"status_label":        escrow.StatusLabel(rec.Status),
		"release_eligible_at": rec.ReleaseEligibleAt,
	})
}

// CancelBooking refunds a booking the trainer has not acted on yet. Once
// the session is marked complete the confirm/dispute flow applies instead.
func CancelBooking(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	payerID, _ := uuid.Parse(claims["user_id"].(string))
	bookingID := c.Params("bookingId")

	var booking models.Booking
	if err := database.DB.First(&booking, "id = ?", bookingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}
	if booking.PayerID != payerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not the payer for this booking"})
	}

	rec, err := ledger.Get(c.Context(), booking.ID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No escrow record for this booking"})
	}
	if rec.Status != models.EscrowHolding {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This booking can no longer be cancelled"})
	}

	if err := connector.Refund(c.Context(), rec); err != nil {
		log.Printf("🔥 Gateway refund failed for booking %s: %v", booking.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Refund could not be processed, please try again."})
	}

	rec, err = ledger.CancelBeforeSession(c.Context(), booking.ID)
	if err != nil {
		if errors.Is(err, escrow.ErrInvalidTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This booking can no longer be cancelled"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel booking"})
	}

	database.DB.Model(&models.Booking{}).Where("id = ?", booking.ID).Update("status", "cancelled")

	return c.JSON(fiber.Map{
		"message":      "Booking cancelled and payment refunded.",
		"status":       rec.Status,
		"status_label": escrow.StatusLabel(rec.Status),
	})
}
