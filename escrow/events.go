package escrow

import (
	"time"

	"github.com/mutisya87/trainer_marketplace/models"
)

type EventType string

const (
	EventSessionMarkedComplete EventType = "session_marked_complete"
	EventConfirmed             EventType = "escrow_confirmed"
	EventDisputed              EventType = "escrow_disputed"
	EventReleased              EventType = "escrow_released"
	EventRefunded              EventType = "escrow_refunded"
)

// Event is emitted on every escrow transition so collaborators
// (notifications, websocket feed, reporting) can react without hooking
// into the ledger itself.
type Event struct {
	Type       EventType           `json:"type"`
	BookingID  string              `json:"booking_id"`
	Record     models.EscrowRecord `json:"record"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// EventSink receives emitted events. Sinks must not block; slow consumers
// should hand off to their own goroutine.
type EventSink func(Event)
