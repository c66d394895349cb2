package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
)

type settlementLedger interface {
	DueForAutoConfirm(ctx context.Context, now time.Time) ([]models.EscrowRecord, error)
	Confirm(ctx context.Context, bookingID uuid.UUID, actor string) (*models.EscrowRecord, error)
	AwaitingTransfer(ctx context.Context) ([]models.EscrowRecord, error)
}

type transferExecutor interface {
	Transfer(ctx context.Context, rec *models.EscrowRecord) (string, error)
}

// SettlementJob drives escrow records forward without human action: it
// auto-confirms records whose hold window has elapsed and executes the
// transfer for confirmed records that have none yet. Safe to run
// concurrently with itself and with request-driven transitions; every
// step is a conditional write, so a record already moved elsewhere is
// simply skipped.
type SettlementJob struct {
	ledger    settlementLedger
	connector transferExecutor
}

func NewSettlementJob(ledger settlementLedger, connector transferExecutor) *SettlementJob {
	return &SettlementJob{ledger: ledger, connector: connector}
}

// Run adapts RunOnce to the cron registration signature.
func (j *SettlementJob) Run() {
	j.RunOnce(context.Background())
}

func (j *SettlementJob) RunOnce(ctx context.Context) {
	log.Println("Running job: Settlement...")

	now := time.Now()
	due, err := j.ledger.DueForAutoConfirm(ctx, now)
	if err != nil {
		log.Printf("Settlement: failed to query records due for auto-confirm: %v", err)
		return
	}

	confirmed := 0
	for _, rec := range due {
		if _, err := j.ledger.Confirm(ctx, rec.BookingID, escrow.ActorScheduler); err != nil {
			if errors.Is(err, escrow.ErrInvalidTransition) {
				continue
			}
			log.Printf("Settlement: auto-confirm failed for booking %s: %v", rec.BookingID, err)
			continue
		}
		confirmed++
	}

	awaiting, err := j.ledger.AwaitingTransfer(ctx)
	if err != nil {
		log.Printf("Settlement: failed to query records awaiting transfer: %v", err)
		return
	}

	released := 0
	for i := range awaiting {
		rec := awaiting[i]
		if _, err := j.connector.Transfer(ctx, &rec); err != nil {
			// One trainer's gateway trouble must not block the rest of the
			// run; the record stays confirmed and is retried next time.
			log.Printf("Settlement: transfer failed for booking %s: %v", rec.BookingID, err)
			continue
		}
		released++
	}

	if confirmed > 0 || released > 0 {
		log.Printf("Settlement: auto-confirmed %d record(s), released %d record(s).", confirmed, released)
	}
}
