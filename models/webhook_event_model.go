package models

import (
	"time"
)

// WebhookEvent is the dedup ledger for gateway deliveries. The unique
// event_id index is what makes at-least-once delivery safe: a retried
// delivery of a processed event is acknowledged without reapplying
// effects, while an unprocessed row lets the redelivery retry the apply.
type WebhookEvent struct {
	ID           uint       `gorm:"primary_key" json:"id"`
	EventID      string     `gorm:"size:255;not null;unique" json:"event_id"`
	Type         string     `gorm:"size:100;not null;index" json:"type"`
	Payload      string     `gorm:"type:text;not null" json:"-"`
	ReceivedAt   time.Time  `gorm:"not null" json:"received_at"`
	Processed    bool       `gorm:"default:false" json:"processed"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ProcessError *string    `gorm:"size:255" json:"process_error,omitempty"`
}
