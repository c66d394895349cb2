package models

import (
	"time"

	"github.com/google/uuid"
)

// TrainerPayoutAccount links a trainer to their external payout account at
// the gateway. One row per trainer, created when the connect flow finishes.
type TrainerPayoutAccount struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TrainerID         uuid.UUID `gorm:"type:uuid;not null;unique" json:"trainer_id"`
	ExternalAccountID string    `gorm:"size:255;not null;unique" json:"external_account_id"`
	ChargesEnabled    bool      `gorm:"default:false" json:"charges_enabled"`
	PayoutsEnabled    bool      `gorm:"default:false" json:"payouts_enabled"`
	ConnectedAt       time.Time `gorm:"not null" json:"connected_at"`

	Trainer User `gorm:"foreignkey:TrainerID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
