package payments_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
	"github.com/mutisya87/trainer_marketplace/payments"
)

func seedConfirmedRecord(t *testing.T, store *fakeEscrowStore, trainerID uuid.UUID) *models.EscrowRecord {
	t.Helper()
	rec := &models.EscrowRecord{
		BookingID:     uuid.New(),
		TrainerID:     trainerID,
		PayerID:       uuid.New(),
		GrossAmount:   10000,
		PlatformFee:   2500,
		TrainerAmount: 7500,
		Currency:      "USD",
		Status:        models.EscrowConfirmed,
	}
	if err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("seeding escrow record: %v", err)
	}
	return rec
}

func connectTrainer(t *testing.T, accounts *fakeAccountStore, trainerID uuid.UUID, payoutsEnabled bool) {
	t.Helper()
	err := accounts.UpsertAccount(context.Background(), &models.TrainerPayoutAccount{
		TrainerID:         trainerID,
		ExternalAccountID: "acct_test",
		ChargesEnabled:    true,
		PayoutsEnabled:    payoutsEnabled,
		ConnectedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("seeding payout account: %v", err)
	}
}

func TestTransferReleasesConfirmedRecord(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	connectTrainer(t, accounts, trainerID, true)
	rec := seedConfirmedRecord(t, store, trainerID)

	ref, err := connector.Transfer(context.Background(), rec)
	assert.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.Equal(t, 1, gateway.createTransferCalls)

	updated, err := ledger.Get(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowReleased, updated.Status)
	if assert.NotNil(t, updated.TransferReference) {
		assert.Equal(t, ref, *updated.TransferReference)
	}
}

func TestTransferWithExistingReferenceMakesNoGatewayCall(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	connectTrainer(t, accounts, trainerID, true)
	rec := seedConfirmedRecord(t, store, trainerID)

	first, err := connector.Transfer(context.Background(), rec)
	assert.NoError(t, err)

	released, err := ledger.Get(context.Background(), rec.BookingID)
	assert.NoError(t, err)

	second, err := connector.Transfer(context.Background(), released)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gateway.createTransferCalls)
}

func TestTransferReconcilesAgainstGatewayAfterCrash(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	connectTrainer(t, accounts, trainerID, true)
	rec := seedConfirmedRecord(t, store, trainerID)

	// A transfer already exists at the gateway but the reference was never
	// persisted locally.
	existing, err := gateway.CreateTransfer(context.Background(), "acct_test", rec.TrainerAmount, rec.Currency, rec.BookingID.String())
	assert.NoError(t, err)
	gateway.createTransferCalls = 0

	ref, err := connector.Transfer(context.Background(), rec)
	assert.NoError(t, err)
	assert.Equal(t, existing.ID, ref)
	assert.Equal(t, 0, gateway.createTransferCalls)
}

func TestTransferRequiresConnectedAccountWithPayoutsEnabled(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	rec := seedConfirmedRecord(t, store, trainerID)

	_, err := connector.Transfer(context.Background(), rec)
	assert.ErrorIs(t, err, payments.ErrNotConnected)

	connectTrainer(t, accounts, trainerID, false)
	_, err = connector.Transfer(context.Background(), rec)
	assert.ErrorIs(t, err, payments.ErrPayoutsDisabled)

	assert.Equal(t, 0, gateway.createTransferCalls)

	unchanged, err := ledger.Get(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowConfirmed, unchanged.Status)
}

func TestRequestPayoutBelowFloorReturnsInsufficientBalance(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	connectTrainer(t, accounts, trainerID, true)
	seedConfirmedRecord(t, store, trainerID)

	transferred, total, err := connector.RequestPayout(context.Background(), trainerID, 7501)
	assert.ErrorIs(t, err, payments.ErrInsufficientBalance)
	assert.Equal(t, 0, transferred)
	assert.Equal(t, int64(7500), total)
	assert.Equal(t, 0, gateway.createTransferCalls)
}

func TestRequestPayoutTransfersEverythingAtOrAboveFloor(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	connectTrainer(t, accounts, trainerID, true)
	first := seedConfirmedRecord(t, store, trainerID)
	second := seedConfirmedRecord(t, store, trainerID)

	transferred, total, err := connector.RequestPayout(context.Background(), trainerID, 15000)
	assert.NoError(t, err)
	assert.Equal(t, 2, transferred)
	assert.Equal(t, int64(15000), total)
	assert.Equal(t, 2, gateway.createTransferCalls)

	for _, rec := range []*models.EscrowRecord{first, second} {
		released, err := ledger.Get(context.Background(), rec.BookingID)
		assert.NoError(t, err)
		assert.Equal(t, models.EscrowReleased, released.Status)
		assert.NotNil(t, released.TransferReference)
	}
}

func TestConnectStateIsSingleUse(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	url, err := connector.GetConnectURL(context.Background(), trainerID)
	assert.NoError(t, err)
	assert.Contains(t, url, "state=")

	var token string
	for tok := range accounts.states {
		token = tok
	}

	acct, err := connector.CompleteConnect(context.Background(), "auth_code", token)
	assert.NoError(t, err)
	assert.Equal(t, trainerID, acct.TrainerID)
	assert.Equal(t, "acct_test", acct.ExternalAccountID)

	_, err = connector.CompleteConnect(context.Background(), "auth_code", token)
	assert.ErrorIs(t, err, payments.ErrInvalidState)
}

func TestCompleteConnectRejectsBadAuthorizationCode(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	_, err := connector.GetConnectURL(context.Background(), trainerID)
	assert.NoError(t, err)

	var token string
	for tok := range accounts.states {
		token = tok
	}

	_, err = connector.CompleteConnect(context.Background(), "bad", token)
	assert.ErrorIs(t, err, payments.ErrExchangeFailed)
}

func TestDisconnectRemovesLocalRowDespiteGatewayFailure(t *testing.T) {
	store := newFakeEscrowStore()
	gateway := newFakeGateway()
	gateway.revokeErr = errors.New("gateway unavailable")
	accounts := newFakeAccountStore()
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
	connector := payments.NewConnector(gateway, accounts, ledger)

	trainerID := uuid.New()
	connectTrainer(t, accounts, trainerID, true)

	assert.NoError(t, connector.Disconnect(context.Background(), trainerID))
	assert.Equal(t, 1, gateway.revokeCalls)

	_, err := accounts.GetByTrainer(context.Background(), trainerID)
	assert.ErrorIs(t, err, payments.ErrNotConnected)
}
