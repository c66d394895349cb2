package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
)

// connectStateTTL bounds how long a connect redirect may take before the
// state token expires.
const connectStateTTL = 30 * time.Minute

// Connector manages trainer payout-account linkage and executes transfers.
// It is the only component that calls the gateway for money movement; the
// ledger's conditional writes keep every transfer at-most-once.
type Connector struct {
	gateway  Gateway
	accounts AccountStore
	ledger   *escrow.Ledger
}

func NewConnector(gateway Gateway, accounts AccountStore, ledger *escrow.Ledger) *Connector {
	return &Connector{gateway: gateway, accounts: accounts, ledger: ledger}
}

// GetConnectURL creates a single-use state token bound to the trainer and
// builds the gateway authorization URL around it.
func (c *Connector) GetConnectURL(ctx context.Context, trainerID uuid.UUID) (string, error) {
	token, err := newStateToken()
	if err != nil {
		return "", err
	}

	state := &models.ConnectState{
		TrainerID: trainerID,
		Token:     token,
		ExpiresAt: time.Now().Add(connectStateTTL),
	}
	if err := c.accounts.CreateState(ctx, state); err != nil {
		return "", err
	}

	return c.gateway.ConnectURL(token)
}

// CompleteConnect verifies and consumes the state token, exchanges the
// authorization code, and persists the linked account.
func (c *Connector) CompleteConnect(ctx context.Context, code, stateToken string) (*models.TrainerPayoutAccount, error) {
	state, err := c.accounts.ConsumeState(ctx, stateToken)
	if err != nil {
		return nil, err
	}

	gwAcct, err := c.gateway.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	acct := &models.TrainerPayoutAccount{
		TrainerID:         state.TrainerID,
		ExternalAccountID: gwAcct.ID,
		ChargesEnabled:    gwAcct.ChargesEnabled,
		PayoutsEnabled:    gwAcct.PayoutsEnabled,
		ConnectedAt:       time.Now(),
	}
	if err := c.accounts.UpsertAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

type AccountStatus struct {
	Connected      bool `json:"connected"`
	ChargesEnabled bool `json:"charges_enabled"`
	PayoutsEnabled bool `json:"payouts_enabled"`
}

// AccountStatusFor is a read-through status query: payouts_enabled gates
// transfers, so it is asked of the gateway every time, never served from a
// cache. The local row is refreshed with whatever comes back.
func (c *Connector) AccountStatusFor(ctx context.Context, trainerID uuid.UUID) (*AccountStatus, error) {
	acct, err := c.accounts.GetByTrainer(ctx, trainerID)
	if err != nil {
		if err == ErrNotConnected {
			return &AccountStatus{}, nil
		}
		return nil, err
	}

	gwAcct, err := c.gateway.GetAccount(ctx, acct.ExternalAccountID)
	if err != nil {
		return nil, err
	}

	if err := c.accounts.UpdateFlags(ctx, acct.ExternalAccountID, gwAcct.ChargesEnabled, gwAcct.PayoutsEnabled); err != nil {
		log.Printf("Failed to refresh payout account flags for trainer %s: %v", trainerID, err)
	}

	return &AccountStatus{
		Connected:      true,
		ChargesEnabled: gwAcct.ChargesEnabled,
		PayoutsEnabled: gwAcct.PayoutsEnabled,
	}, nil
}

// Transfer executes the payout for a confirmed escrow record and finalises
// it to released. Guards, in order: the record must not already carry a
// transfer reference (if it does, that reference is returned without any
// gateway call), the trainer must be connected, and payouts must be
// enabled. Before creating a transfer the gateway is asked for an existing
// one tied to this booking, so a crash after a successful gateway call but
// before persisting the reference cannot double-pay.
func (c *Connector) Transfer(ctx context.Context, rec *models.EscrowRecord) (string, error) {
	if rec.TransferReference != nil {
		return *rec.TransferReference, nil
	}

	acct, err := c.accounts.GetByTrainer(ctx, rec.TrainerID)
	if err != nil {
		return "", err
	}
	if !acct.PayoutsEnabled {
		return "", ErrPayoutsDisabled
	}

	bookingRef := rec.BookingID.String()

	existing, err := c.gateway.FindTransferByBooking(ctx, bookingRef)
	if err != nil {
		return "", err
	}

	var ref string
	if existing != nil {
		ref = existing.ID
	} else {
		tr, err := c.gateway.CreateTransfer(ctx, acct.ExternalAccountID, rec.TrainerAmount, rec.Currency, bookingRef)
		if err != nil {
			return "", err
		}
		ref = tr.ID
	}

	if _, err := c.ledger.MarkReleased(ctx, rec.BookingID, ref); err != nil {
		return "", err
	}
	return ref, nil
}

// RequestPayout executes transfers for every confirmed unreleased record
// of the trainer, provided the payable total meets the minimum floor.
// Individual transfer failures are logged and skipped; those records stay
// confirmed for the scheduler to retry.
func (c *Connector) RequestPayout(ctx context.Context, trainerID uuid.UUID, minCents int64) (int, int64, error) {
	records, err := c.ledger.ConfirmedUnreleasedByTrainer(ctx, trainerID)
	if err != nil {
		return 0, 0, err
	}

	var total int64
	for _, rec := range records {
		total += rec.TrainerAmount
	}
	if total < minCents {
		return 0, total, ErrInsufficientBalance
	}

	transferred := 0
	for i := range records {
		if _, err := c.Transfer(ctx, &records[i]); err != nil {
			log.Printf("Payout transfer failed for booking %s: %v", records[i].BookingID, err)
			continue
		}
		transferred++
	}
	return transferred, total, nil
}

// Refund returns the captured payment to the payer through the gateway's
// refund primitive against the original charge. No trainer transfer is
// involved.
func (c *Connector) Refund(ctx context.Context, rec *models.EscrowRecord) error {
	return c.gateway.RefundPayment(ctx, rec.BookingID.String(), rec.GrossAmount)
}

// Disconnect revokes the gateway link best-effort, then removes the local
// row unconditionally; a remote failure must not leave the trainer stuck.
func (c *Connector) Disconnect(ctx context.Context, trainerID uuid.UUID) error {
	acct, err := c.accounts.GetByTrainer(ctx, trainerID)
	if err != nil {
		return err
	}

	if err := c.gateway.RevokeAccount(ctx, acct.ExternalAccountID); err != nil {
		log.Printf("Gateway revocation failed for trainer %s (continuing with local removal): %v", trainerID, err)
	}

	return c.accounts.DeleteByTrainer(ctx, trainerID)
}

func newStateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
