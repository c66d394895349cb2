package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/models"
)

// EventStore is the webhook dedup ledger. Insert reports true only when
// the event id was seen before AND its effects were applied; a redelivery
// of an event whose apply failed reports false so the effects are retried.
type EventStore interface {
	Insert(ctx context.Context, ev *models.WebhookEvent) (duplicate bool, err error)
	MarkProcessed(ctx context.Context, eventID string, processErr *string) error
}

// BookingMarker lets webhook ingestion notify the booking collaborator of
// payment outcomes without owning booking state itself.
type BookingMarker interface {
	MarkPaid(ctx context.Context, bookingID uuid.UUID) error
	MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error
}

type escrowOverrider interface {
	ForceRefund(ctx context.Context, bookingID uuid.UUID) (*models.EscrowRecord, error)
}

type gatewayEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		BookingRef     string `json:"booking_ref"`
		AccountID      string `json:"account_id"`
		ChargesEnabled bool   `json:"charges_enabled"`
		PayoutsEnabled bool   `json:"payouts_enabled"`
		TransferID     string `json:"transfer_id"`
		AmountCents    int64  `json:"amount_cents"`
	} `json:"data"`
}

// WebhookService verifies, deduplicates, and applies gateway deliveries.
type WebhookService struct {
	secret   string
	events   EventStore
	bookings BookingMarker
	accounts AccountStore
	ledger   escrowOverrider
}

func NewWebhookService(secret string, events EventStore, bookings BookingMarker, accounts AccountStore, ledger *escrow.Ledger) *WebhookService {
	return &WebhookService{secret: secret, events: events, bookings: bookings, accounts: accounts, ledger: ledger}
}

// Handle processes one raw delivery. Signature and configuration failures
// are rejected outright; a duplicate of an already-processed event id is
// acknowledged as success with no side effects. A redelivery of an event
// whose apply previously failed runs the apply again, so the gateway's
// at-least-once retries repair transient failures.
func (s *WebhookService) Handle(ctx context.Context, raw []byte, signatureHeader string) error {
	if err := VerifySignature(s.secret, signatureHeader, raw); err != nil {
		return err
	}

	var ev gatewayEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ErrBadSignature
	}
	if ev.ID == "" || ev.Type == "" {
		return ErrBadSignature
	}

	duplicate, err := s.events.Insert(ctx, &models.WebhookEvent{
		EventID:    ev.ID,
		Type:       ev.Type,
		Payload:    string(raw),
		ReceivedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	if duplicate {
		log.Printf("Webhook event %s deduplicated", ev.ID)
		return nil
	}

	applyErr := s.apply(ctx, ev)
	if applyErr != nil {
		msg := applyErr.Error()
		if len(msg) > 250 {
			msg = msg[:250]
		}
		if err := s.events.MarkProcessed(ctx, ev.ID, &msg); err != nil {
			return err
		}
		return applyErr
	}

	return s.events.MarkProcessed(ctx, ev.ID, nil)
}

func (s *WebhookService) apply(ctx context.Context, ev gatewayEvent) error {
	switch ev.Type {
	case "payment.succeeded":
		bookingID, err := uuid.Parse(ev.Data.BookingRef)
		if err != nil {
			return fmt.Errorf("payment.succeeded: bad booking_ref %q", ev.Data.BookingRef)
		}
		return s.bookings.MarkPaid(ctx, bookingID)

	case "payment.failed":
		bookingID, err := uuid.Parse(ev.Data.BookingRef)
		if err != nil {
			return fmt.Errorf("payment.failed: bad booking_ref %q", ev.Data.BookingRef)
		}
		return s.bookings.MarkPaymentFailed(ctx, bookingID)

	case "charge.refunded":
		bookingID, err := uuid.Parse(ev.Data.BookingRef)
		if err != nil {
			return fmt.Errorf("charge.refunded: bad booking_ref %q", ev.Data.BookingRef)
		}
		rec, err := s.ledger.ForceRefund(ctx, bookingID)
		if err != nil {
			if errors.Is(err, escrow.ErrNotFound) {
				log.Printf("charge.refunded for booking %s with no escrow record", bookingID)
				return nil
			}
			return err
		}
		if rec.NeedsReconciliation {
			log.Printf("⚠️ Refund landed after release for booking %s; flagged for manual reconciliation", bookingID)
		}
		return nil

	case "account.updated":
		if ev.Data.AccountID == "" {
			return errors.New("account.updated: missing account_id")
		}
		return s.accounts.UpdateFlags(ctx, ev.Data.AccountID, ev.Data.ChargesEnabled, ev.Data.PayoutsEnabled)

	case "transfer.created":
		log.Printf("Gateway transfer %s created for booking %s (%d cents)", ev.Data.TransferID, ev.Data.BookingRef, ev.Data.AmountCents)
		return nil
	}

	log.Printf("Ignoring unhandled webhook event type %q (event %s)", ev.Type, ev.ID)
	return nil
}

type gormEventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) EventStore {
	return &gormEventStore{db: db}
}

func (s *gormEventStore) Insert(ctx context.Context, ev *models.WebhookEvent) (bool, error) {
	err := s.db.WithContext(ctx).Create(ev).Error
	if err == nil {
		return false, nil
	}
	if !isUniqueEventViolation(err) {
		return false, err
	}

	// Redelivery. Only a processed row short-circuits; an unprocessed row
	// means the previous apply failed and its effects must be retried.
	var existing models.WebhookEvent
	if err := s.db.WithContext(ctx).First(&existing, "event_id = ?", ev.EventID).Error; err != nil {
		return false, err
	}
	return existing.Processed, nil
}

func (s *gormEventStore) MarkProcessed(ctx context.Context, eventID string, processErr *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed":     processErr == nil,
		"processed_at":  now,
		"process_error": processErr,
	}
	return s.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error
}

func isUniqueEventViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

type gormBookingMarker struct {
	db *gorm.DB
}

func NewBookingMarker(db *gorm.DB) BookingMarker {
	return &gormBookingMarker{db: db}
}

func (m *gormBookingMarker) MarkPaid(ctx context.Context, bookingID uuid.UUID) error {
	return m.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("status", "confirmed").Error
}

func (m *gormBookingMarker) MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error {
	return m.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("status", "payment_failed").Error
}
