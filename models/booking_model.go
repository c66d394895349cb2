package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionKindTraining = "training"
	SessionKindCamp     = "camp"
	SessionKindClinic   = "clinic"
)

type Booking struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PayerID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"payer_id"`
	TrainerID *uuid.UUID `gorm:"type:uuid;index" json:"trainer_id"`

	// Explicit product classification supplied at creation; payout tiering
	// depends on it, so it is never inferred from names or categories.
	SessionKind string `gorm:"size:20;not null;default:'training'" json:"session_kind"`

	Status     string `gorm:"size:20;not null;default:'created'" json:"status"`
	PriceCents int64  `gorm:"not null" json:"price_cents"`
	Currency   string `gorm:"size:3;not null;default:'USD'" json:"currency"`

	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`

	Payer   User  `gorm:"foreignkey:PayerID" json:"-"`
	Trainer *User `gorm:"foreignkey:TrainerID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
