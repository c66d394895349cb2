package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
)

func escrowResponse(rec *models.EscrowRecord) fiber.Map {
	return fiber.Map{
		"booking_id":          rec.BookingID,
		"status":              rec.Status,
		"status_label":        escrow.StatusLabel(rec.Status),
		"gross_amount":        rec.GrossAmount,
		"platform_fee":        rec.PlatformFee,
		"trainer_amount":      rec.TrainerAmount,
		"currency":            rec.Currency,
		"release_eligible_at": rec.ReleaseEligibleAt,
	}
}

// GetEscrowStatus returns the settlement state of a booking to either
// party on it.
func GetEscrowStatus(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	rec, err := ledger.Get(c.Context(), bookingID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No escrow record for this booking"})
	}
	if rec.PayerID != userID && rec.TrainerID != userID && claims["role"] != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not a party to this booking"})
	}

	return c.JSON(escrowResponse(rec))
}

// ConfirmSession is the payer's explicit confirmation. It also kicks the
// transfer immediately instead of waiting for the next scheduler pass.
func ConfirmSession(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	payerID, _ := uuid.Parse(claims["user_id"].(string))

	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	rec, err := ledger.Get(c.Context(), bookingID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No escrow record for this booking"})
	}
	if rec.PayerID != payerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the payer can confirm this session"})
	}

	rec, err = ledger.Confirm(c.Context(), bookingID, escrow.ActorPayer)
	if err != nil {
		if errors.Is(err, escrow.ErrInvalidTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This session cannot be confirmed in its current state"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to confirm session"})
	}

	// Payout failures here are not surfaced to the payer; the scheduler
	// retries any confirmed record still missing a transfer.
	if _, err := connector.Transfer(c.Context(), rec); err != nil {
		log.Printf("⚠️ Transfer after confirmation failed for booking %s, scheduler will retry: %v", bookingID, err)
	}

	rec, err = ledger.Get(c.Context(), bookingID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch escrow record"})
	}
	return c.JSON(escrowResponse(rec))
}

type DisputeRequest struct {
	Reason      string `json:"reason" validate:"required,min=10"`
	EvidenceURL string `json:"evidence_url" validate:"omitempty,url"`
}

// DisputeSession lets the payer contest a completed session before the
// hold window elapses. A disputed record is never auto-confirmed.
func DisputeSession(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	payerID, _ := uuid.Parse(claims["user_id"].(string))

	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	var req DisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rec, err := ledger.Get(c.Context(), bookingID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No escrow record for this booking"})
	}
	if rec.PayerID != payerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the payer can dispute this session"})
	}

	var evidence *string
	if req.EvidenceURL != "" {
		evidence = &req.EvidenceURL
	}

	rec, err = ledger.OpenDispute(c.Context(), bookingID, req.Reason, evidence)
	if err != nil {
		if errors.Is(err, escrow.ErrInvalidTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This session cannot be disputed in its current state"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open dispute"})
	}

	return c.JSON(escrowResponse(rec))
}
