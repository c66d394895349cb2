package handlers

import (
	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/payments"
)

var (
	ledger     *escrow.Ledger
	connector  *payments.Connector
	webhookSvc *payments.WebhookService
)

// InitSettlement wires the settlement services into the handler package.
// Called once from main before routes are registered.
func InitSettlement(l *escrow.Ledger, c *payments.Connector, w *payments.WebhookService) {
	ledger = l
	connector = c
	webhookSvc = w
}
