package escrow

import "github.com/mutisya87/trainer_marketplace/models"

// FeeContext carries the booking facts the fee computation depends on.
// PriorSessionCount is the payer's count of confirmed or released sessions
// with this trainer; the caller supplies it, the calculator reads no data.
type FeeContext struct {
	SessionKind       string
	HasTrainer        bool
	PriorSessionCount int64
}

// Policy holds the commission rates in basis points of the gross amount
// that go to the trainer.
type Policy struct {
	FirstSessionBps  int64
	RepeatSessionBps int64
	NonTrainingBps   int64
}

// DefaultPolicy: trainers keep 50% of a payer's first session with them,
// 75% of repeat sessions, and 80% of camp/clinic purchases.
var DefaultPolicy = Policy{
	FirstSessionBps:  5000,
	RepeatSessionBps: 7500,
	NonTrainingBps:   8000,
}

// Compute splits grossCents into (platformFee, trainerAmount). The trainer
// share is rounded half-up to the cent and the remainder goes to the
// platform fee, so the two always sum back to grossCents exactly.
func (p Policy) Compute(grossCents int64, ctx FeeContext) (int64, int64) {
	bps := p.rate(ctx)
	trainerAmount := (grossCents*bps + 5000) / 10000
	return grossCents - trainerAmount, trainerAmount
}

func (p Policy) rate(ctx FeeContext) int64 {
	if ctx.SessionKind != models.SessionKindTraining {
		if !ctx.HasTrainer {
			return 0
		}
		return p.NonTrainingBps
	}
	if ctx.PriorSessionCount == 0 {
		return p.FirstSessionBps
	}
	return p.RepeatSessionBps
}
