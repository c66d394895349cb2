package escrow

import "errors"

var (
	// ErrDuplicateEscrow means an escrow record already exists for the booking.
	ErrDuplicateEscrow = errors.New("escrow record already exists for this booking")

	// ErrInvalidTransition means the record is not in a status the requested
	// transition is valid from.
	ErrInvalidTransition = errors.New("invalid escrow status for this transition")

	// ErrNotFound means no escrow record exists for the booking.
	ErrNotFound = errors.New("escrow record not found")
)
