package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	config "github.com/mutisya87/trainer_marketplace/configs"
	"github.com/mutisya87/trainer_marketplace/database"
	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
)

// GetOpenDisputes lists escrow records currently under review, oldest
// first.
func GetOpenDisputes(c *fiber.Ctx) error {
	var records []models.EscrowRecord
	if err := database.DB.
		Where("status = ?", models.EscrowDisputed).
		Order("disputed_at asc").
		Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch disputes"})
	}
	return c.JSON(records)
}

type ResolveDisputeRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=release refund"`
}

// ResolveDispute settles a disputed session either way. Release runs the
// normal transfer path; refund returns the payment and never pays the
// trainer.
func ResolveDispute(c *fiber.Ctx) error {
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	var req ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	switch req.Outcome {
	case escrow.OutcomeRelease:
		rec, err := ledger.ResolveDisputeRelease(c.Context(), bookingID)
		if err != nil {
			if errors.Is(err, escrow.ErrInvalidTransition) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This dispute is not open"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve dispute"})
		}
		if _, err := connector.Transfer(c.Context(), rec); err != nil {
			log.Printf("⚠️ Transfer after dispute release failed for booking %s, scheduler will retry: %v", bookingID, err)
		}
		rec, err = ledger.Get(c.Context(), bookingID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch escrow record"})
		}
		return c.JSON(escrowResponse(rec))

	case escrow.OutcomeRefund:
		rec, err := ledger.Get(c.Context(), bookingID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No escrow record for this booking"})
		}
		// Checked before the gateway call so a replayed resolution cannot
		// issue a second refund.
		if rec.Status != models.EscrowDisputed {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This dispute is not open"})
		}
		if err := connector.Refund(c.Context(), rec); err != nil {
			log.Printf("🔥 Gateway refund failed for disputed booking %s: %v", bookingID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Refund could not be processed"})
		}
		rec, err = ledger.ResolveDisputeRefund(c.Context(), bookingID)
		if err != nil {
			if errors.Is(err, escrow.ErrInvalidTransition) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This dispute is not open"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve dispute"})
		}
		return c.JSON(escrowResponse(rec))
	}

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown outcome"})
}

// GetReconciliationQueue lists refunds that landed after funds had already
// been transferred; these need a manual clawback.
func GetReconciliationQueue(c *fiber.Ctx) error {
	var records []models.EscrowRecord
	if err := database.DB.
		Where("needs_reconciliation = ?", true).
		Order("refunded_at asc").
		Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reconciliation queue"})
	}
	return c.JSON(records)
}

func taxReportThresholdCents() int64 {
	v, err := strconv.ParseInt(config.Config("TAX_REPORT_THRESHOLD_CENTS"), 10, 64)
	if err != nil || v <= 0 {
		return 60000
	}
	return v
}

type taxReportRow struct {
	TrainerID    uuid.UUID `json:"trainer_id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	TotalCents   int64     `json:"total_cents"`
	SessionCount int64     `json:"session_count"`
	Reportable   bool      `json:"reportable"`
}

// GetTaxReport totals released trainer earnings per trainer for a calendar
// year and flags everyone over the reporting threshold.
func GetTaxReport(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Query("year", strconv.Itoa(time.Now().Year())))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid year"})
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	threshold := taxReportThresholdCents()

	var rows []taxReportRow
	err = database.DB.
		Model(&models.EscrowRecord{}).
		Select("escrow_records.trainer_id, users.full_name, users.email, SUM(escrow_records.trainer_amount) as total_cents, COUNT(*) as session_count").
		Joins("JOIN users ON users.id = escrow_records.trainer_id").
		Where("escrow_records.status = ? AND escrow_records.released_at >= ? AND escrow_records.released_at < ?", models.EscrowReleased, start, end).
		Group("escrow_records.trainer_id, users.full_name, users.email").
		Order("total_cents desc").
		Scan(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build tax report"})
	}

	for i := range rows {
		rows[i].Reportable = rows[i].TotalCents >= threshold
	}

	return c.JSON(fiber.Map{
		"year":            year,
		"threshold_cents": threshold,
		"trainers":        rows,
	})
}

// ApproveTrainer activates a pending trainer profile.
func ApproveTrainer(c *fiber.Ctx) error {
	trainerID, err := uuid.Parse(c.Params("trainerId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
	}

	result := database.DB.Model(&models.TrainerProfile{}).
		Where("user_id = ? AND status = ?", trainerID, "pending").
		Update("status", "approved")
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to approve trainer"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No pending trainer profile found"})
	}

	return c.JSON(fiber.Map{"message": "Trainer approved."})
}
