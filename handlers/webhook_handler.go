package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/mutisya87/trainer_marketplace/payments"
)

// HandleGatewayWebhook receives gateway deliveries. Signature failures are
// rejected with a 400; apply failures get a 500 so the gateway redelivers
// and the retry can repair a transient error. Duplicates of processed
// events are acknowledged with a 200.
func HandleGatewayWebhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("X-Gateway-Signature")

	err := webhookSvc.Handle(c.Context(), body, signature)
	if err != nil {
		if errors.Is(err, payments.ErrBadSignature) || errors.Is(err, payments.ErrUnconfigured) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
		}
		log.Printf("🔥 Webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Event could not be processed"})
	}

	return c.SendStatus(fiber.StatusOK)
}
