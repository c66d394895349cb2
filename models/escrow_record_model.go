package models

import (
	"time"

	"github.com/google/uuid"
)

type EscrowStatus string

const (
	EscrowHolding         EscrowStatus = "holding"
	EscrowSessionComplete EscrowStatus = "session_complete"
	EscrowConfirmed       EscrowStatus = "confirmed"
	EscrowDisputed        EscrowStatus = "disputed"
	EscrowReleased        EscrowStatus = "released"
	EscrowRefunded        EscrowStatus = "refunded"
)

// EscrowRecord tracks captured booking funds from capture to release or
// refund. Exactly one record exists per booking; amounts are integer cents
// and platform_fee + trainer_amount always equals gross_amount.
type EscrowRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;unique" json:"booking_id"`
	TrainerID uuid.UUID `gorm:"type:uuid;not null;index" json:"trainer_id"`
	PayerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"payer_id"`

	GrossAmount   int64  `gorm:"not null" json:"gross_amount"`
	PlatformFee   int64  `gorm:"not null" json:"platform_fee"`
	TrainerAmount int64  `gorm:"not null" json:"trainer_amount"`
	Currency      string `gorm:"size:3;not null;default:'USD'" json:"currency"`

	Status EscrowStatus `gorm:"size:20;not null;default:'holding';index" json:"status"`

	TrainerCompletedAt *time.Time `json:"trainer_completed_at,omitempty"`
	ReleaseEligibleAt  *time.Time `gorm:"index" json:"release_eligible_at,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy        *string    `gorm:"size:20" json:"confirmed_by,omitempty"`
	DisputedAt         *time.Time `json:"disputed_at,omitempty"`
	DisputeReason      *string    `gorm:"type:text" json:"dispute_reason,omitempty"`
	DisputeEvidenceURL *string    `gorm:"size:512" json:"dispute_evidence_url,omitempty"`
	ReleasedAt         *time.Time `json:"released_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`

	// Set once, when a gateway transfer has been created for this record.
	TransferReference *string `gorm:"size:255;unique" json:"transfer_reference,omitempty"`

	// Set when a refund lands after funds already went out, so an operator
	// can reconcile by hand.
	NeedsReconciliation bool `gorm:"default:false" json:"needs_reconciliation"`

	Booking Booking `gorm:"foreignkey:BookingID" json:"-"`
	Trainer User    `gorm:"foreignkey:TrainerID" json:"-"`
	Payer   User    `gorm:"foreignkey:PayerID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
