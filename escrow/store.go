package escrow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutisya87/trainer_marketplace/models"
)

// Store is the persistence boundary of the ledger. Every status change goes
// through Transition (or one of the specialised conditional writes), which
// only succeeds when the record is still in the expected prior status, so
// concurrent actors racing on the same record lose benignly instead of
// double-applying.
type Store interface {
	Create(ctx context.Context, rec *models.EscrowRecord) error
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error)

	// Transition performs "UPDATE ... WHERE booking_id = ? AND status = ?"
	// and reports whether a row was actually moved.
	Transition(ctx context.Context, bookingID uuid.UUID, from models.EscrowStatus, updates map[string]interface{}) (bool, error)

	// MarkReleased moves confirmed -> released and sets the transfer
	// reference in one conditional write, guarded on the reference still
	// being unset.
	MarkReleased(ctx context.Context, bookingID uuid.UUID, transferRef string, releasedAt time.Time) (bool, error)

	// ForceRefund overrides any non-terminal-refunded status to refunded.
	// Used for out-of-band refunds (chargebacks); flags the record for
	// manual reconciliation when a transfer had already gone out.
	ForceRefund(ctx context.Context, bookingID uuid.UUID, refundedAt time.Time) (bool, error)

	CountPriorSessions(ctx context.Context, payerID, trainerID uuid.UUID) (int64, error)
	DueForAutoConfirm(ctx context.Context, now time.Time) ([]models.EscrowRecord, error)
	AwaitingTransfer(ctx context.Context) ([]models.EscrowRecord, error)
	ConfirmedUnreleasedByTrainer(ctx context.Context, trainerID uuid.UUID) ([]models.EscrowRecord, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, rec *models.EscrowRecord) error {
	err := s.db.WithContext(ctx).Create(rec).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateEscrow
	}
	return err
}

func (s *gormStore) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error) {
	var rec models.EscrowRecord
	err := s.db.WithContext(ctx).First(&rec, "booking_id = ?", bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *gormStore) Transition(ctx context.Context, bookingID uuid.UUID, from models.EscrowStatus, updates map[string]interface{}) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.EscrowRecord{}).
		Where("booking_id = ? AND status = ?", bookingID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) MarkReleased(ctx context.Context, bookingID uuid.UUID, transferRef string, releasedAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.EscrowRecord{}).
		Where("booking_id = ? AND status = ? AND transfer_reference IS NULL", bookingID, models.EscrowConfirmed).
		Updates(map[string]interface{}{
			"status":             models.EscrowReleased,
			"transfer_reference": transferRef,
			"released_at":        releasedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) ForceRefund(ctx context.Context, bookingID uuid.UUID, refundedAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.EscrowRecord{}).
		Where("booking_id = ? AND status <> ?", bookingID, models.EscrowRefunded).
		Updates(map[string]interface{}{
			"status":               models.EscrowRefunded,
			"refunded_at":          refundedAt,
			"needs_reconciliation": gorm.Expr("transfer_reference IS NOT NULL"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) CountPriorSessions(ctx context.Context, payerID, trainerID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.EscrowRecord{}).
		Where("payer_id = ? AND trainer_id = ? AND status IN ?",
			payerID, trainerID, []models.EscrowStatus{models.EscrowConfirmed, models.EscrowReleased}).
		Count(&count).Error
	return count, err
}

func (s *gormStore) DueForAutoConfirm(ctx context.Context, now time.Time) ([]models.EscrowRecord, error) {
	var recs []models.EscrowRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND release_eligible_at <= ?", models.EscrowSessionComplete, now).
		Find(&recs).Error
	return recs, err
}

func (s *gormStore) AwaitingTransfer(ctx context.Context) ([]models.EscrowRecord, error) {
	var recs []models.EscrowRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND transfer_reference IS NULL", models.EscrowConfirmed).
		Find(&recs).Error
	return recs, err
}

func (s *gormStore) ConfirmedUnreleasedByTrainer(ctx context.Context, trainerID uuid.UUID) ([]models.EscrowRecord, error) {
	var recs []models.EscrowRecord
	err := s.db.WithContext(ctx).
		Where("trainer_id = ? AND status = ? AND transfer_reference IS NULL", trainerID, models.EscrowConfirmed).
		Find(&recs).Error
	return recs, err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
