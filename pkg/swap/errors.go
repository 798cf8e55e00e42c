package swap

import "errors"

// Protocol errors. Callers branch on the exact failure, so every
// rejection path surfaces one of these rather than a generic error.
var (
	// Validation failures at order creation. No state changes when
	// any of these is returned.
	ErrAmountOutOfRange   = errors.New("amount outside configured bounds")
	ErrTimelockOutOfRange = errors.New("timelock outside configured window")
	ErrHashlockUsed       = errors.New("hashlock already consumed by an existing order")

	// Claim / cancel failures.
	ErrOrderNotFound      = errors.New("order not found")
	ErrAlreadyResolved    = errors.New("order already completed or refunded")
	ErrTimelockExpired    = errors.New("timelock expired")
	ErrTimelockNotExpired = errors.New("timelock not yet expired")
	ErrInvalidPreimage    = errors.New("preimage does not hash to hashlock")
	ErrNotAuthorized      = errors.New("caller not authorized")

	// ErrStateConflict is returned when a status transition is
	// attempted from anything other than the expected prior state.
	ErrStateConflict = errors.New("conflicting order state transition")

	// ErrInsufficientBalance is returned when the sender cannot cover
	// the value to lock.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
