// Package orderstore defines the canonical store for swap orders and
// the relayer's delivery bookkeeping, with in-memory and PostgreSQL
// implementations.
package orderstore

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/crosslane/swapbridge/pkg/swap"
)

// DeliveryStatus represents the relayer-side state of an order's
// submission to the target ledger.
type DeliveryStatus string

const (
	// DeliveryStatusPending means a submission attempt is in flight.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusDelivered means the target ledger accepted the submission.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusAbandoned means the retry budget was exhausted.
	// Not fatal to the swap: the sender's refund path remains open.
	DeliveryStatusAbandoned DeliveryStatus = "abandoned"
	// DeliveryStatusCompleted means the order was claimed on the escrow
	// ledger and the preimage was forwarded downstream.
	DeliveryStatusCompleted DeliveryStatus = "completed"
	// DeliveryStatusCancelled means the order was refunded after expiry.
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// Delivery records the relay outcome for one order.
type Delivery struct {
	OrderID      string
	Status       DeliveryStatus
	Attempts     int
	Receipt      *string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the single source of truth for orders, read and written by
// both the resolver and the relayer. All status writes are
// compare-and-swap style: transitions from anything but the expected
// prior state fail with swap.ErrStateConflict.
type Store interface {
	// CreateOrder inserts a new pending order. The escrow ledger calls
	// this under its own lock so creation and fund-locking are atomic.
	CreateOrder(ctx context.Context, order *swap.Order) error
	// GetOrder returns the order or swap.ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (*swap.Order, error)
	// HashlockUsed reports whether any order, in any state, has ever
	// consumed the given hashlock.
	HashlockUsed(ctx context.Context, hashlock common.Hash) (bool, error)
	// MarkCompleted transitions a pending order to completed,
	// recording the resolver and the revealed preimage.
	MarkCompleted(ctx context.Context, id string, resolver common.Address, preimage []byte, at time.Time) error
	// MarkRefunded transitions a pending order to refunded.
	MarkRefunded(ctx context.Context, id string, at time.Time) error
	// ListOrders returns the most recently created orders.
	ListOrders(ctx context.Context, limit int) ([]*swap.Order, error)
	// Stats returns order counts by state.
	Stats(ctx context.Context) (swap.Stats, error)
}

// DeliveryStore is the relayer's bookkeeping surface.
type DeliveryStore interface {
	// GetDelivery returns the delivery record, or (nil, nil) when the
	// order has never been picked up.
	GetDelivery(ctx context.Context, orderID string) (*Delivery, error)
	CreateDelivery(ctx context.Context, delivery *Delivery) error
	UpdateDelivery(ctx context.Context, orderID string, status DeliveryStatus, receipt *string, attempts int, errMsg *string) error
	// ListPendingDeliveries returns deliveries still pending whose last
	// update is older than the given cutoff.
	ListPendingDeliveries(ctx context.Context, updatedBefore time.Time) ([]*Delivery, error)
	// GetRelayCursor returns the last escrow event sequence processed,
	// zero when the relayer has never run.
	GetRelayCursor(ctx context.Context) (uint64, error)
	SetRelayCursor(ctx context.Context, seq uint64) error
}
