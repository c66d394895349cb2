package escrow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
)

type fakeStore struct {
	mu    sync.Mutex
	recs  map[uuid.UUID]*models.EscrowRecord
	prior int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[uuid.UUID]*models.EscrowRecord)}
}

func (s *fakeStore) Create(ctx context.Context, rec *models.EscrowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.BookingID]; ok {
		return escrow.ErrDuplicateEscrow
	}
	cp := *rec
	s.recs[rec.BookingID] = &cp
	return nil
}

func (s *fakeStore) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[bookingID]
	if !ok {
		return nil, escrow.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) Transition(ctx context.Context, bookingID uuid.UUID, from models.EscrowStatus, updates map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[bookingID]
	if !ok || rec.Status != from {
		return false, nil
	}
	applyUpdates(rec, updates)
	return true, nil
}

func (s *fakeStore) MarkReleased(ctx context.Context, bookingID uuid.UUID, transferRef string, releasedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[bookingID]
	if !ok || rec.Status != models.EscrowConfirmed || rec.TransferReference != nil {
		return false, nil
	}
	rec.Status = models.EscrowReleased
	rec.TransferReference = &transferRef
	rec.ReleasedAt = &releasedAt
	return true, nil
}

func (s *fakeStore) ForceRefund(ctx context.Context, bookingID uuid.UUID, refundedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[bookingID]
	if !ok || rec.Status == models.EscrowRefunded {
		return false, nil
	}
	rec.Status = models.EscrowRefunded
	rec.RefundedAt = &refundedAt
	rec.NeedsReconciliation = rec.TransferReference != nil
	return true, nil
}

func (s *fakeStore) CountPriorSessions(ctx context.Context, payerID, trainerID uuid.UUID) (int64, error) {
	return s.prior, nil
}

func (s *fakeStore) DueForAutoConfirm(ctx context.Context, now time.Time) ([]models.EscrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EscrowRecord
	for _, rec := range s.recs {
		if rec.Status == models.EscrowSessionComplete && rec.ReleaseEligibleAt != nil && !rec.ReleaseEligibleAt.After(now) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeStore) AwaitingTransfer(ctx context.Context) ([]models.EscrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EscrowRecord
	for _, rec := range s.recs {
		if rec.Status == models.EscrowConfirmed && rec.TransferReference == nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeStore) ConfirmedUnreleasedByTrainer(ctx context.Context, trainerID uuid.UUID) ([]models.EscrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EscrowRecord
	for _, rec := range s.recs {
		if rec.TrainerID == trainerID && rec.Status == models.EscrowConfirmed && rec.TransferReference == nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func applyUpdates(rec *models.EscrowRecord, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			rec.Status = v.(models.EscrowStatus)
		case "trainer_completed_at":
			t := v.(time.Time)
			rec.TrainerCompletedAt = &t
		case "release_eligible_at":
			t := v.(time.Time)
			rec.ReleaseEligibleAt = &t
		case "confirmed_at":
			t := v.(time.Time)
			rec.ConfirmedAt = &t
		case "confirmed_by":
			by := v.(string)
			rec.ConfirmedBy = &by
		case "disputed_at":
			t := v.(time.Time)
			rec.DisputedAt = &t
		case "dispute_reason":
			r := v.(string)
			rec.DisputeReason = &r
		case "dispute_evidence_url":
			u := v.(string)
			rec.DisputeEvidenceURL = &u
		case "refunded_at":
			t := v.(time.Time)
			rec.RefundedAt = &t
		}
	}
}

func newTestLedger(store *fakeStore) *escrow.Ledger {
	return escrow.NewLedger(store, escrow.DefaultPolicy, 48*time.Hour)
}

func createHolding(t *testing.T, l *escrow.Ledger) *models.EscrowRecord {
	t.Helper()
	rec, err := l.Create(context.Background(), uuid.New(), uuid.New(), uuid.New(), 10000, "USD", models.SessionKindTraining)
	if err != nil {
		t.Fatalf("unexpected error creating escrow record: %v", err)
	}
	return rec
}

func TestCreateComputesSplitAtCapture(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)

	rec := createHolding(t, l)

	assert.Equal(t, models.EscrowHolding, rec.Status)
	assert.Equal(t, int64(5000), rec.TrainerAmount)
	assert.Equal(t, int64(5000), rec.PlatformFee)
}

func TestCreateUsesRepeatRateAfterPriorSessions(t *testing.T) {
	store := newFakeStore()
	store.prior = 2
	l := newTestLedger(store)

	rec := createHolding(t, l)

	assert.Equal(t, int64(7500), rec.TrainerAmount)
	assert.Equal(t, int64(2500), rec.PlatformFee)
}

func TestCreateRejectsDuplicateBooking(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)

	bookingID := uuid.New()
	_, err := l.Create(context.Background(), bookingID, uuid.New(), uuid.New(), 5000, "USD", models.SessionKindCamp)
	assert.NoError(t, err)

	_, err = l.Create(context.Background(), bookingID, uuid.New(), uuid.New(), 5000, "USD", models.SessionKindCamp)
	assert.ErrorIs(t, err, escrow.ErrDuplicateEscrow)
}

func TestMarkSessionCompleteIsIdempotent(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	events := 0
	l.Subscribe(func(ev escrow.Event) {
		if ev.Type == escrow.EventSessionMarkedComplete {
			events++
		}
	})

	first, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowSessionComplete, first.Status)
	assert.NotNil(t, first.ReleaseEligibleAt)

	second, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowSessionComplete, second.Status)
	assert.Equal(t, first.ReleaseEligibleAt.Unix(), second.ReleaseEligibleAt.Unix())

	assert.Equal(t, 1, events)
}

func TestConfirmRequiresSessionComplete(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.Confirm(context.Background(), rec.BookingID, escrow.ActorPayer)
	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)

	_, err = l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)

	confirmed, err := l.Confirm(context.Background(), rec.BookingID, escrow.ActorPayer)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowConfirmed, confirmed.Status)
	if assert.NotNil(t, confirmed.ConfirmedBy) {
		assert.Equal(t, escrow.ActorPayer, *confirmed.ConfirmedBy)
	}
}

func TestConcurrentConfirmHasExactlyOneWinner(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Confirm(context.Background(), rec.BookingID, escrow.ActorScheduler); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestDisputeSuppressesAutoConfirm(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)

	evidence := "https://files.example.com/evidence.jpg"
	disputed, err := l.OpenDispute(context.Background(), rec.BookingID, "Trainer never showed up", &evidence)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowDisputed, disputed.Status)

	due, err := l.DueForAutoConfirm(context.Background(), time.Now().Add(100*time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, due)

	_, err = l.Confirm(context.Background(), rec.BookingID, escrow.ActorScheduler)
	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)
}

func TestDisputeRejectedOnceConfirmedOrTerminal(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	_, err = l.Confirm(context.Background(), rec.BookingID, escrow.ActorPayer)
	assert.NoError(t, err)

	_, err = l.OpenDispute(context.Background(), rec.BookingID, "Too late to complain", nil)
	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)

	_, err = l.MarkReleased(context.Background(), rec.BookingID, "tr_001")
	assert.NoError(t, err)
	_, err = l.OpenDispute(context.Background(), rec.BookingID, "Too late to complain", nil)
	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)

	cancelled := createHolding(t, l)
	_, err = l.CancelBeforeSession(context.Background(), cancelled.BookingID)
	assert.NoError(t, err)
	_, err = l.OpenDispute(context.Background(), cancelled.BookingID, "Too late to complain", nil)
	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)
}

func TestHoldWindowGatesAutoConfirmEligibility(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	completed, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)

	before, err := l.DueForAutoConfirm(context.Background(), completed.ReleaseEligibleAt.Add(-time.Minute))
	assert.NoError(t, err)
	assert.Empty(t, before)

	after, err := l.DueForAutoConfirm(context.Background(), completed.ReleaseEligibleAt.Add(time.Minute))
	assert.NoError(t, err)
	assert.Len(t, after, 1)
	assert.Equal(t, rec.BookingID, after[0].BookingID)
}

func TestResolveDisputeRefundNeverPaysTrainer(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	_, err = l.OpenDispute(context.Background(), rec.BookingID, "Session was cut short", nil)
	assert.NoError(t, err)

	refunded, err := l.ResolveDisputeRefund(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowRefunded, refunded.Status)
	assert.Nil(t, refunded.TransferReference)
}

func TestResolveDisputeRefundRejectsReplay(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	_, err = l.OpenDispute(context.Background(), rec.BookingID, "Session was cut short", nil)
	assert.NoError(t, err)

	refunds := 0
	l.Subscribe(func(ev escrow.Event) {
		if ev.Type == escrow.EventRefunded {
			refunds++
		}
	})

	_, err = l.ResolveDisputeRefund(context.Background(), rec.BookingID)
	assert.NoError(t, err)

	_, err = l.ResolveDisputeRefund(context.Background(), rec.BookingID)
	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)
	assert.Equal(t, 1, refunds)
}

func TestResolveDisputeReleaseReentersSettlementPath(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	_, err = l.OpenDispute(context.Background(), rec.BookingID, "Session was cut short", nil)
	assert.NoError(t, err)

	resolved, err := l.ResolveDisputeRelease(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowConfirmed, resolved.Status)
	if assert.NotNil(t, resolved.ConfirmedBy) {
		assert.Equal(t, escrow.ActorOperator, *resolved.ConfirmedBy)
	}

	awaiting, err := l.AwaitingTransfer(context.Background())
	assert.NoError(t, err)
	assert.Len(t, awaiting, 1)
}

func TestCancelOnlyFromHolding(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)

	_, err = l.CancelBeforeSession(context.Background(), rec.BookingID)
	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)

	fresh := createHolding(t, l)
	cancelled, err := l.CancelBeforeSession(context.Background(), fresh.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowRefunded, cancelled.Status)
}

func TestMarkReleasedIsAtMostOnce(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	_, err = l.Confirm(context.Background(), rec.BookingID, escrow.ActorPayer)
	assert.NoError(t, err)

	releases := 0
	l.Subscribe(func(ev escrow.Event) {
		if ev.Type == escrow.EventReleased {
			releases++
		}
	})

	released, err := l.MarkReleased(context.Background(), rec.BookingID, "tr_001")
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowReleased, released.Status)

	again, err := l.MarkReleased(context.Background(), rec.BookingID, "tr_002")
	assert.NoError(t, err)
	if assert.NotNil(t, again.TransferReference) {
		assert.Equal(t, "tr_001", *again.TransferReference)
	}

	assert.Equal(t, 1, releases)
}

func TestForceRefundAfterReleaseFlagsReconciliation(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	_, err := l.MarkSessionComplete(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	_, err = l.Confirm(context.Background(), rec.BookingID, escrow.ActorPayer)
	assert.NoError(t, err)
	_, err = l.MarkReleased(context.Background(), rec.BookingID, "tr_001")
	assert.NoError(t, err)

	refunded, err := l.ForceRefund(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowRefunded, refunded.Status)
	assert.True(t, refunded.NeedsReconciliation)
}

func TestForceRefundBeforeReleaseNeedsNoReconciliation(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store)
	rec := createHolding(t, l)

	refunded, err := l.ForceRefund(context.Background(), rec.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowRefunded, refunded.Status)
	assert.False(t, refunded.NeedsReconciliation)
}
