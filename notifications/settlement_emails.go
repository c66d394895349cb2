package notifications

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/database"
	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
)

// SettlementEventSink turns escrow transition events into emails for the
// payer and trainer involved. Registered with the ledger at startup; the
// actual sends run off the request path.
func SettlementEventSink(ev escrow.Event) {
	go handleSettlementEvent(ev)
}

func handleSettlementEvent(ev escrow.Event) {
	var payer, trainer models.User
	if err := database.DB.First(&payer, "id = ?", ev.Record.PayerID).Error; err != nil {
		log.Printf("Settlement email: payer %s not found: %v", ev.Record.PayerID, err)
		return
	}
	if ev.Record.TrainerID != uuid.Nil {
		if err := database.DB.First(&trainer, "id = ?", ev.Record.TrainerID).Error; err != nil {
			log.Printf("Settlement email: trainer %s not found: %v", ev.Record.TrainerID, err)
			return
		}
	}

	amount := fmt.Sprintf("$%.2f", float64(ev.Record.GrossAmount)/100)
	trainerAmount := fmt.Sprintf("$%.2f", float64(ev.Record.TrainerAmount)/100)

	switch ev.Type {
	case escrow.EventSessionMarkedComplete:
		SendEmail(payer.FullName, payer.Email, "Please Confirm Your Session",
			fmt.Sprintf("<h1>Session Complete</h1><p>%s marked your session as complete. Please confirm it went well, or open a dispute within 48 hours. Otherwise it will be confirmed automatically.</p>", trainer.FullName))

	case escrow.EventConfirmed:
		SendEmail(trainer.FullName, trainer.Email, "Your Session Was Confirmed",
			fmt.Sprintf("<h1>Session Confirmed</h1><p>The %s session has been confirmed. Your earnings of %s will be transferred to your payout account shortly.</p>", amount, trainerAmount))

	case escrow.EventDisputed:
		SendEmail(trainer.FullName, trainer.Email, "A Session Is Under Review",
			"<h1>Session Under Review</h1><p>A client has raised a concern about a recent session. Payout for this session is on hold while our team reviews it. We may reach out for details.</p>")

	case escrow.EventReleased:
		SendEmail(trainer.FullName, trainer.Email, "Your Payout Is On Its Way",
			fmt.Sprintf("<h1>Payout Released</h1><p>%s from your confirmed session has been sent to your payout account.</p>", trainerAmount))

	case escrow.EventRefunded:
		SendEmail(payer.FullName, payer.Email, "Your Refund Has Been Processed",
			fmt.Sprintf("<h1>Refund Processed</h1><p>Your payment of %s has been refunded to your original payment method.</p>", amount))
	}
}
