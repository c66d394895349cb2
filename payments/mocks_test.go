package payments_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
	"github.com/mutisya87/trainer_marketplace/payments"
)

// fakeEscrowStore is an in-memory escrow.Store with the same conditional
// write semantics as the SQL implementation.
type fakeEscrowStore struct {
	mu   sync.Mutex
	recs map[uuid.UUID]*models.EscrowRecord
}

func newFakeEscrowStore() *fakeEscrowStore {
	return &fakeEscrowStore{recs: make(map[uuid.UUID]*models.EscrowRecord)}
}

func (s *fakeEscrowStore) Create(ctx context.Context, rec *models.EscrowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.BookingID]; ok {
		return escrow.ErrDuplicateEscrow
	}
	cp := *rec
	s.recs[rec.BookingID] = &cp
	return nil
}

func (s *fakeEscrowStore) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[bookingID]
	if !ok {
		return nil, escrow.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeEscrowStore) Transition(ctx context.Context, bookingID uuid.UUID, from models.EscrowStatus, updates map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[bookingID]
	if !ok || rec.Status != from {
		return false, nil
	}
	if status, ok := updates["status"]; ok {
		rec.Status = status.(models.EscrowStatus)
	}
	return true, nil
}

func (s *fakeEscrowStore) MarkReleased(ctx context.Context, bookingID uuid.UUID, transferRef string, releasedAt time.Time) (bool, error) {
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

func (s *fakeEscrowStore) ForceRefund(ctx context.Context, bookingID uuid.UUID, refundedAt time.Time) (bool, error) {
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

func (s *fakeEscrowStore) CountPriorSessions(ctx context.Context, payerID, trainerID uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *fakeEscrowStore) DueForAutoConfirm(ctx context.Context, now time.Time) ([]models.EscrowRecord, error) {
	return nil, nil
}

func (s *fakeEscrowStore) AwaitingTransfer(ctx context.Context) ([]models.EscrowRecord, error) {
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

func (s *fakeEscrowStore) ConfirmedUnreleasedByTrainer(ctx context.Context, trainerID uuid.UUID) ([]models.EscrowRecord, error) {
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

// fakeGateway records calls and serves canned responses.
type fakeGateway struct {
	mu sync.Mutex

	account         payments.Account
	createdTransfer map[string]*payments.Transfer

	createTransferCalls int
	refundCalls         int
	revokeCalls         int
	revokeErr           error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		account:         payments.Account{ID: "acct_test", ChargesEnabled: true, PayoutsEnabled: true},
		createdTransfer: make(map[string]*payments.Transfer),
	}
}

func (g *fakeGateway) ConnectURL(state string) (string, error) {
	return "https://gateway.example.com/connect?state=" + state, nil
}

func (g *fakeGateway) ExchangeCode(ctx context.Context, code string) (*payments.Account, error) {
	if code == "bad" {
		return nil, payments.ErrExchangeFailed
	}
	acct := g.account
	return &acct, nil
}

func (g *fakeGateway) GetAccount(ctx context.Context, accountID string) (*payments.Account, error) {
	acct := g.account
	return &acct, nil
}

func (g *fakeGateway) CreateTransfer(ctx context.Context, accountID string, amountCents int64, currency, bookingRef string) (*payments.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createTransferCalls++
	tr := &payments.Transfer{
		ID:          fmt.Sprintf("tr_%03d", g.createTransferCalls),
		AccountID:   accountID,
		AmountCents: amountCents,
		Currency:    currency,
		BookingRef:  bookingRef,
		Status:      "pending",
	}
	g.createdTransfer[bookingRef] = tr
	return tr, nil
}

func (g *fakeGateway) FindTransferByBooking(ctx context.Context, bookingRef string) (*payments.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tr, ok := g.createdTransfer[bookingRef]; ok {
		cp := *tr
		return &cp, nil
	}
	return nil, nil
}

func (g *fakeGateway) RefundPayment(ctx context.Context, bookingRef string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	return nil
}

func (g *fakeGateway) RevokeAccount(ctx context.Context, accountID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revokeCalls++
	return g.revokeErr
}

// fakeAccountStore is an in-memory payments.AccountStore.
type fakeAccountStore struct {
	mu     sync.Mutex
	states map[string]*models.ConnectState
	accts  map[uuid.UUID]*models.TrainerPayoutAccount

	updateFlagsErr error
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		states: make(map[string]*models.ConnectState),
		accts:  make(map[uuid.UUID]*models.TrainerPayoutAccount),
	}
}

func (s *fakeAccountStore) CreateState(ctx context.Context, state *models.ConnectState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.states[state.Token] = &cp
	return nil
}

func (s *fakeAccountStore) ConsumeState(ctx context.Context, token string) (*models.ConnectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[token]
	if !ok || state.UsedAt != nil || !state.ExpiresAt.After(time.Now()) {
		return nil, payments.ErrInvalidState
	}
	now := time.Now()
	state.UsedAt = &now
	cp := *state
	return &cp, nil
}

func (s *fakeAccountStore) UpsertAccount(ctx context.Context, acct *models.TrainerPayoutAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *acct
	s.accts[acct.TrainerID] = &cp
	return nil
}

func (s *fakeAccountStore) GetByTrainer(ctx context.Context, trainerID uuid.UUID) (*models.TrainerPayoutAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accts[trainerID]
	if !ok {
		return nil, payments.ErrNotConnected
	}
	cp := *acct
	return &cp, nil
}

func (s *fakeAccountStore) UpdateFlags(ctx context.Context, externalAccountID string, chargesEnabled, payoutsEnabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateFlagsErr != nil {
		return s.updateFlagsErr
	}
	for _, acct := range s.accts {
		if acct.ExternalAccountID == externalAccountID {
			acct.ChargesEnabled = chargesEnabled
			acct.PayoutsEnabled = payoutsEnabled
		}
	}
	return nil
}

func (s *fakeAccountStore) DeleteByTrainer(ctx context.Context, trainerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accts, trainerID)
	return nil
}

// fakeEventStore deduplicates on event id like the unique index does; a
// redelivery of an unprocessed event is not a duplicate, matching the
// SQL store.
type fakeEventStore struct {
	mu     sync.Mutex
	events map[string]*models.WebhookEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[string]*models.WebhookEvent)}
}

func (s *fakeEventStore) Insert(ctx context.Context, ev *models.WebhookEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.events[ev.EventID]; ok {
		return existing.Processed, nil
	}
	cp := *ev
	s.events[ev.EventID] = &cp
	return false, nil
}

func (s *fakeEventStore) MarkProcessed(ctx context.Context, eventID string, processErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil
	}
	now := time.Now()
	ev.Processed = processErr == nil
	ev.ProcessedAt = &now
	ev.ProcessError = processErr
	return nil
}

// fakeBookingMarker records payment outcomes per booking.
type fakeBookingMarker struct {
	mu        sync.Mutex
	status    map[uuid.UUID]string
	paidCalls int
}

func newFakeBookingMarker() *fakeBookingMarker {
	return &fakeBookingMarker{status: make(map[uuid.UUID]string)}
}

func (m *fakeBookingMarker) MarkPaid(ctx context.Context, bookingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paidCalls++
	m.status[bookingID] = "confirmed"
	return nil
}

func (m *fakeBookingMarker) MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[bookingID] = "payment_failed"
	return nil
}
