package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/models"
)

const (
	ActorPayer     = "payer"
	ActorScheduler = "scheduler"
	ActorOperator  = "operator"
)

const (
	OutcomeRelease = "release"
	OutcomeRefund  = "refund"
)

// DefaultHoldWindow is how long after trainer completion the payer has to
// confirm or dispute before the scheduler auto-confirms.
const DefaultHoldWindow = 48 * time.Hour

// Ledger owns the escrow state machine. It is the only writer of escrow
// records; handlers, the scheduler, webhook ingestion and the gateway
// connector all drive transitions through it.
type Ledger struct {
	store      Store
	policy     Policy
	holdWindow time.Duration
	sinks      []EventSink
}

func NewLedger(store Store, policy Policy, holdWindow time.Duration) *Ledger {
	if holdWindow <= 0 {
		holdWindow = DefaultHoldWindow
	}
	return &Ledger{store: store, policy: policy, holdWindow: holdWindow}
}

// Subscribe registers a sink for transition events. Not safe to call once
// the app is serving; wire sinks during startup.
func (l *Ledger) Subscribe(sink EventSink) {
	l.sinks = append(l.sinks, sink)
}

func (l *Ledger) emit(t EventType, rec *models.EscrowRecord) {
	ev := Event{Type: t, BookingID: rec.BookingID.String(), Record: *rec, OccurredAt: time.Now()}
	for _, sink := range l.sinks {
		sink(ev)
	}
}

// Create opens a holding record at payment capture. The fee split is
// computed here, once, from the commission policy and the payer's prior
// confirmed/released session count with this trainer.
func (l *Ledger) Create(ctx context.Context, bookingID, trainerID, payerID uuid.UUID, grossCents int64, currency, sessionKind string) (*models.EscrowRecord, error) {
	fctx := FeeContext{SessionKind: sessionKind, HasTrainer: trainerID != uuid.Nil}
	if fctx.HasTrainer && sessionKind == models.SessionKindTraining {
		prior, err := l.store.CountPriorSessions(ctx, payerID, trainerID)
		if err != nil {
			return nil, err
		}
		fctx.PriorSessionCount = prior
	}
	fee, trainerAmount := l.policy.Compute(grossCents, fctx)

	rec := &models.EscrowRecord{
		BookingID:     bookingID,
		TrainerID:     trainerID,
		PayerID:       payerID,
		GrossAmount:   grossCents,
		PlatformFee:   fee,
		TrainerAmount: trainerAmount,
		Currency:      currency,
		Status:        models.EscrowHolding,
	}
	if err := l.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkSessionComplete moves holding -> session_complete and fixes the
// release-eligibility time. Duplicate submissions on a record already past
// holding return the current record unchanged.
func (l *Ledger) MarkSessionComplete(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	now := time.Now()
	eligible := now.Add(l.holdWindow)
	moved, err := l.store.Transition(ctx, bookingID, models.EscrowHolding, map[string]interface{}{
		"status":               models.EscrowSessionComplete,
		"trainer_completed_at": now,
		"release_eligible_at":  eligible,
	})
	if err != nil {
		return nil, err
	}
	rec, err := l.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if moved {
		l.emit(EventSessionMarkedComplete, rec)
	}
	return rec, nil
}

// Confirm moves session_complete -> confirmed. Both the payer and the
// scheduler land here; the actor is kept for audit. Losing the conditional
// update means some other actor already moved the record, which is an
// ErrInvalidTransition for explicit callers and a skip for the scheduler.
func (l *Ledger) Confirm(ctx context.Context, bookingID uuid.UUID, actor string) (*models.EscrowRecord, error) {
	now := time.Now()
	moved, err := l.store.Transition(ctx, bookingID, models.EscrowSessionComplete, map[string]interface{}{
		"status":       models.EscrowConfirmed,
		"confirmed_at": now,
		"confirmed_by": actor,
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		if _, err := l.store.GetByBookingID(ctx, bookingID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	rec, err := l.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	l.emit(EventConfirmed, rec)
	return rec, nil
}

// OpenDispute moves session_complete -> disputed, which also suppresses
// auto-confirmation since the scheduler only picks up session_complete rows.
func (l *Ledger) OpenDispute(ctx context.Context, bookingID uuid.UUID, reason string, evidenceURL *string) (*models.EscrowRecord, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":         models.EscrowDisputed,
		"disputed_at":    now,
		"dispute_reason": reason,
	}
	if evidenceURL != nil {
		updates["dispute_evidence_url"] = *evidenceURL
	}
	moved, err := l.store.Transition(ctx, bookingID, models.EscrowSessionComplete, updates)
	if err != nil {
		return nil, err
	}
	if !moved {
		if _, err := l.store.GetByBookingID(ctx, bookingID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	rec, err := l.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	l.emit(EventDisputed, rec)
	return rec, nil
}

// ResolveDisputeRelease moves disputed -> confirmed so the normal
// settlement path (transfer, then released) runs; the caller triggers the
// transfer immediately and the scheduler retries if that fails.
func (l *Ledger) ResolveDisputeRelease(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	now := time.Now()
	moved, err := l.store.Transition(ctx, bookingID, models.EscrowDisputed, map[string]interface{}{
		"status":       models.EscrowConfirmed,
		"confirmed_at": now,
		"confirmed_by": ActorOperator,
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		if _, err := l.store.GetByBookingID(ctx, bookingID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	rec, err := l.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	l.emit(EventConfirmed, rec)
	return rec, nil
}

// ResolveDisputeRefund moves disputed -> refunded. The gateway refund
// against the original payment is the caller's job; no trainer transfer
// ever happens on this path.
func (l *Ledger) ResolveDisputeRefund(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	return l.refundFrom(ctx, bookingID, models.EscrowDisputed)
}

// CancelBeforeSession refunds a holding record when the booking is
// cancelled before any trainer action.
func (l *Ledger) CancelBeforeSession(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	return l.refundFrom(ctx, bookingID, models.EscrowHolding)
}

func (l *Ledger) refundFrom(ctx context.Context, bookingID uuid.UUID, from models.EscrowStatus) (*models.EscrowRecord, error) {
	now := time.Now()
	moved, err := l.store.Transition(ctx, bookingID, from, map[string]interface{}{
		"status":      models.EscrowRefunded,
		"refunded_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		if _, err := l.store.GetByBookingID(ctx, bookingID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	rec, err := l.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	l.emit(EventRefunded, rec)
	return rec, nil
}

// ForceRefund is the terminal override for refunds that happen outside the
// normal flow (chargebacks reported by the gateway). Safe to call in any
// state; refund-after-release is flagged for manual reconciliation because
// the transferred funds cannot be clawed back automatically.
func (l *Ledger) ForceRefund(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	moved, err := l.store.ForceRefund(ctx, bookingID, time.Now())
	if err != nil {
		return nil, err
	}
	rec, err := l.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if moved {
		l.emit(EventRefunded, rec)
	}
	return rec, nil
}

// MarkReleased finalises settlement after a successful gateway transfer.
// The conditional write doubles as the at-most-once transfer guard.
func (l *Ledger) MarkReleased(ctx context.Context, bookingID uuid.UUID, transferRef string) (*models.EscrowRecord, error) {
	moved, err := l.store.MarkReleased(ctx, bookingID, transferRef, time.Now())
	if err != nil {
		return nil, err
	}
	rec, err := l.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if moved {
		l.emit(EventReleased, rec)
	}
	return rec, nil
}

func (l *Ledger) Get(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	return l.store.GetByBookingID(ctx, bookingID)
}

func (l *Ledger) DueForAutoConfirm(ctx context.Context, now time.Time) ([]models.EscrowRecord, error) {
	return l.store.DueForAutoConfirm(ctx, now)
}

func (l *Ledger) AwaitingTransfer(ctx context.Context) ([]models.EscrowRecord, error) {
	return l.store.AwaitingTransfer(ctx)
}

func (l *Ledger) ConfirmedUnreleasedByTrainer(ctx context.Context, trainerID uuid.UUID) ([]models.EscrowRecord, error) {
	return l.store.ConfirmedUnreleasedByTrainer(ctx, trainerID)
}

// StatusLabel maps an escrow status to the label shown to payers and
// trainers in dashboards and emails.
func StatusLabel(status models.EscrowStatus) string {
	switch status {
	case models.EscrowHolding:
		return "Payment Secured"
	case models.EscrowSessionComplete:
		return "Awaiting Confirmation"
	case models.EscrowConfirmed:
		return "Confirmed"
	case models.EscrowDisputed:
		return "Under Review"
	case models.EscrowReleased:
		return "Released"
	case models.EscrowRefunded:
		return "Refunded"
	}
	return string(status)
}
