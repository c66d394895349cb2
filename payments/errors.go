package payments

import "errors"

var (
	// ErrNotConfigured means the gateway credentials are missing from the
	// environment; connect/transfer features are unavailable.
	ErrNotConfigured = errors.New("payment gateway is not configured")

	// ErrNotConnected means the trainer has no linked payout account.
	ErrNotConnected = errors.New("trainer has no connected payout account")

	// ErrPayoutsDisabled means the linked account cannot receive transfers yet.
	ErrPayoutsDisabled = errors.New("payouts are not enabled on the trainer account")

	// ErrInvalidState means the connect-callback state token is unknown,
	// expired, or already used.
	ErrInvalidState = errors.New("invalid or expired connect state token")

	// ErrExchangeFailed means the gateway rejected the authorization code.
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrInsufficientBalance means a manual payout request fell below the
	// minimum payout floor.
	ErrInsufficientBalance = errors.New("payable balance is below the minimum payout amount")

	// ErrBadSignature means webhook signature verification failed.
	ErrBadSignature = errors.New("webhook signature verification failed")

	// ErrUnconfigured means no webhook signing secret is set; unauthenticated
	// webhook processing is refused outright.
	ErrUnconfigured = errors.New("webhook signing secret is not configured")
)

// GatewayError wraps transient failures talking to the gateway. Transfers
// that hit one stay in confirmed so the next scheduler run retries.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return "gateway " + e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
