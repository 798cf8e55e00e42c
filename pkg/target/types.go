// Package target defines the submission interface to the target
// ledger: an opaque (destination, payload, value, gas budget) tuple,
// a delivery receipt, and the retryable/permanent error classification
// the relayer's retry loop is built on.
package target

import (
	"context"
	"fmt"
	"time"
)

// Submission is the intent forwarded to the target ledger for one
// escrow order. The payload is opaque at this layer; decoding it into
// a native instruction is the target chain adapter's concern.
type Submission struct {
	CommandID   string `json:"command_id"`
	Destination string `json:"destination"`
	Payload     []byte `json:"payload"`
	Value       string `json:"value"`
	GasBudget   uint64 `json:"gas_budget"`
}

// Receipt acknowledges an accepted submission.
type Receipt struct {
	CommandID  string    `json:"command_id"`
	TxHash     string    `json:"tx_hash"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Client submits intents to the target ledger.
type Client interface {
	Submit(ctx context.Context, sub Submission) (*Receipt, error)
}

// DeliveryError classifies a failed submission. Retryable failures
// (network faults, target-side 5xx) are retried with backoff;
// permanent ones abort the delivery immediately.
type DeliveryError struct {
	Retryable bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s delivery error: %v", kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// RetryableError wraps err as a retryable delivery failure.
func RetryableError(err error) error {
	return &DeliveryError{Retryable: true, Err: err}
}

// PermanentError wraps err as a non-retryable delivery failure.
func PermanentError(err error) error {
	return &DeliveryError{Retryable: false, Err: err}
}
