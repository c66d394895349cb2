package payments

import "context"

// Account is the gateway's view of a linked payout account.
type Account struct {
	ID             string `json:"id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

// Transfer is a platform-to-trainer funds movement at the gateway.
type Transfer struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	BookingRef  string `json:"booking_ref"`
	Status      string `json:"status"`
}

// Gateway isolates every outbound call to the external payment processor.
// All methods are synchronous network calls with a bounded timeout; a
// timeout is a retryable *GatewayError, never assumed successful.
type Gateway interface {
	ConnectURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (*Account, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateTransfer(ctx context.Context, accountID string, amountCents int64, currency, bookingRef string) (*Transfer, error)

	// FindTransferByBooking is the reconciliation read: before creating a
	// transfer with no local reference, ask the gateway whether one already
	// exists for this booking (covers a crash between the gateway call and
	// persisting the reference).
	FindTransferByBooking(ctx context.Context, bookingRef string) (*Transfer, error)

	RefundPayment(ctx context.Context, bookingRef string, amountCents int64) error
	RevokeAccount(ctx context.Context, accountID string) error
}
