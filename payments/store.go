package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutisya87/trainer_marketplace/models"
)

// AccountStore persists payout-account linkage and the single-use connect
// state tokens.
type AccountStore interface {
	CreateState(ctx context.Context, state *models.ConnectState) error

	// ConsumeState atomically marks an unexpired, unused token as used and
	// returns it; any other case is ErrInvalidState.
	ConsumeState(ctx context.Context, token string) (*models.ConnectState, error)

	UpsertAccount(ctx context.Context, acct *models.TrainerPayoutAccount) error
	GetByTrainer(ctx context.Context, trainerID uuid.UUID) (*models.TrainerPayoutAccount, error)
	UpdateFlags(ctx context.Context, externalAccountID string, chargesEnabled, payoutsEnabled bool) error
	DeleteByTrainer(ctx context.Context, trainerID uuid.UUID) error
}

type gormAccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) AccountStore {
	return &gormAccountStore{db: db}
}

func (s *gormAccountStore) CreateState(ctx context.Context, state *models.ConnectState) error {
	return s.db.WithContext(ctx).Create(state).Error
}

func (s *gormAccountStore) ConsumeState(ctx context.Context, token string) (*models.ConnectState, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&models.ConnectState{}).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		Update("used_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, ErrInvalidState
	}

	var state models.ConnectState
	if err := s.db.WithContext(ctx).First(&state, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *gormAccountStore) UpsertAccount(ctx context.Context, acct *models.TrainerPayoutAccount) error {
	var existing models.TrainerPayoutAccount
	err := s.db.WithContext(ctx).First(&existing, "trainer_id = ?", acct.TrainerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.db.WithContext(ctx).Create(acct).Error
		}
		return err
	}

	existing.ExternalAccountID = acct.ExternalAccountID
	existing.ChargesEnabled = acct.ChargesEnabled
	existing.PayoutsEnabled = acct.PayoutsEnabled
	existing.ConnectedAt = acct.ConnectedAt
	return s.db.WithContext(ctx).Save(&existing).Error
}

func (s *gormAccountStore) GetByTrainer(ctx context.Context, trainerID uuid.UUID) (*models.TrainerPayoutAccount, error) {
	var acct models.TrainerPayoutAccount
	err := s.db.WithContext(ctx).First(&acct, "trainer_id = ?", trainerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}
	return &acct, nil
}

func (s *gormAccountStore) UpdateFlags(ctx context.Context, externalAccountID string, chargesEnabled, payoutsEnabled bool) error {
	return s.db.WithContext(ctx).
		Model(&models.TrainerPayoutAccount{}).
		Where("external_account_id = ?", externalAccountID).
		Updates(map[string]interface{}{
			"charges_enabled": chargesEnabled,
			"payouts_enabled": payoutsEnabled,
		}).Error
}

func (s *gormAccountStore) DeleteByTrainer(ctx context.Context, trainerID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("trainer_id = ?", trainerID).
		Delete(&models.TrainerPayoutAccount{}).Error
}
