package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	config "github.com/mutisya87/trainer_marketplace/configs"
	"github.com/mutisya87/trainer_marketplace/payments"
)

// InitiateConnect starts the payout-account onboarding flow and returns
// the gateway authorization URL for the trainer to visit.
func InitiateConnect(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))

	url, err := connector.GetConnectURL(c.Context(), trainerID)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Payout onboarding is not available right now"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start payout onboarding"})
	}

	return c.JSON(fiber.Map{"url": url})
}

// ConnectCallback handles the gateway redirect. The state token is
// single-use; a replayed or expired callback gets a 400.
func ConnectCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing code or state"})
	}

	acct, err := connector.CompleteConnect(c.Context(), code, state)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidState) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or expired connect state"})
		}
		if errors.Is(err, payments.ErrExchangeFailed) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "The payment provider rejected the authorization"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to complete payout onboarding"})
	}

	return c.JSON(fiber.Map{
		"message":         "Payout account connected.",
		"payouts_enabled": acct.PayoutsEnabled,
	})
}

// GetPayoutAccountStatus reports whether the trainer can receive
// transfers. Always checked against the gateway, never a stale cache.
func GetPayoutAccountStatus(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))

	status, err := connector.AccountStatusFor(c.Context(), trainerID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Could not reach the payment provider"})
	}
	return c.JSON(status)
}

// DisconnectPayoutAccount unlinks the trainer's payout account.
func DisconnectPayoutAccount(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))

	if err := connector.Disconnect(c.Context(), trainerID); err != nil {
		if errors.Is(err, payments.ErrNotConnected) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No payout account connected"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to disconnect payout account"})
	}

	return c.JSON(fiber.Map{"message": "Payout account disconnected."})
}

func minPayoutCents() int64 {
	v, err := strconv.ParseInt(config.Config("MIN_PAYOUT_CENTS"), 10, 64)
	if err != nil || v <= 0 {
		return 1000
	}
	return v
}

// GetPendingEarnings lists the trainer's confirmed sessions still
// awaiting transfer, with the payable total.
func GetPendingEarnings(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))

	records, err := ledger.ConfirmedUnreleasedByTrainer(c.Context(), trainerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch pending earnings"})
	}

	var total int64
	for _, rec := range records {
		total += rec.TrainerAmount
	}

	return c.JSON(fiber.Map{
		"pending_cents":    total,
		"session_count":    len(records),
		"min_payout_cents": minPayoutCents(),
	})
}

// RequestPayout pushes the trainer's confirmed unreleased earnings out
// immediately instead of waiting for the scheduler, subject to the
// minimum payout floor.
func RequestPayout(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	trainerID, _ := uuid.Parse(claims["user_id"].(string))

	transferred, total, err := connector.RequestPayout(c.Context(), trainerID, minPayoutCents())
	if err != nil {
		if errors.Is(err, payments.ErrInsufficientBalance) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":            "Pending earnings are below the minimum payout amount",
				"pending_cents":    total,
				"min_payout_cents": minPayoutCents(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process payout request"})
	}

	if transferred == 0 {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "No transfers could be completed, please try again later"})
	}

	return c.JSON(fiber.Map{
		"message":       "Payout initiated.",
		"transferred":   transferred,
		"payable_cents": total,
	})
}
