package models

import (
	"time"

	"github.com/google/uuid"
)

// Statement is a generated monthly earnings statement for a trainer,
// summing released trainer amounts for the period. The PDF lives in
// Cloudinary; only the URL is stored here.
type Statement struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TrainerID    uuid.UUID `gorm:"type:uuid;not null;index" json:"trainer_id"`
	PeriodStart  time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd    time.Time `gorm:"not null" json:"period_end"`
	SessionCount int       `gorm:"not null" json:"session_count"`
	TotalCents   int64     `gorm:"not null" json:"total_cents"`
	Currency     string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	StatementURL string    `gorm:"size:512;not null" json:"statement_url"`

	Trainer User `gorm:"foreignkey:TrainerID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
