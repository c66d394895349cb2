package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectState is a single-use state token for the payout-account connect
// flow. Verified and consumed when the gateway redirects back.
type ConnectState struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TrainerID uuid.UUID  `gorm:"type:uuid;not null;index" json:"trainer_id"`
	Token     string     `gorm:"size:64;not null;unique" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
