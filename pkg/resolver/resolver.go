// Package resolver decides whether a claim or cancellation is
// eligible before anything is submitted to the escrow ledger, and
// exposes the read-only query interface consumed by external tooling.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/crosslane/swapbridge/pkg/orderstore"
	"github.com/crosslane/swapbridge/pkg/swap"
)

// EscrowLedger is the slice of the escrow ledger the resolver drives.
type EscrowLedger interface {
	ClaimSwap(ctx context.Context, resolver common.Address, orderID string, preimage []byte) error
	Refund(ctx context.Context, caller common.Address, orderID string) error
}

// Service validates and orchestrates order completion and cancellation.
type Service struct {
	store  orderstore.Store
	ledger EscrowLedger
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a resolver service over the given store and ledger.
func NewService(store orderstore.Store, ledger EscrowLedger, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ValidateClaim checks claim eligibility fail-fast: the order exists,
// is not already resolved, the timelock has not elapsed, and the
// preimage hashes to the commitment. The returned error identifies
// exactly which check failed.
func (s *Service) ValidateClaim(ctx context.Context, orderID string, preimage []byte) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return swap.ErrAlreadyResolved
	}
	if !s.now().Before(order.Timelock) {
		return swap.ErrTimelockExpired
	}
	if swap.HashPreimage(preimage) != order.Hashlock {
		return swap.ErrInvalidPreimage
	}
	return nil
}

// ValidateCancel checks refund eligibility: the order exists, the
// caller is the original sender, the order is still pending, and the
// timelock has elapsed. Premature or foreign cancellation always
// fails, never silently succeeds.
func (s *Service) ValidateCancel(ctx context.Context, orderID string, caller common.Address) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if caller != order.Sender {
		return swap.ErrNotAuthorized
	}
	if order.Status.Terminal() {
		return swap.ErrAlreadyResolved
	}
	if s.now().Before(order.Timelock) {
		return swap.ErrTimelockNotExpired
	}
	return nil
}

// Claim validates and then completes the order on the escrow ledger.
func (s *Service) Claim(ctx context.Context, resolver common.Address, orderID string, preimage []byte) error {
	if err := s.ValidateClaim(ctx, orderID, preimage); err != nil {
		s.logger.Debug("Claim rejected",
			zap.String("order_id", orderID),
			zap.String("resolver", resolver.Hex()),
			zap.Error(err))
		return err
	}
	if err := s.ledger.ClaimSwap(ctx, resolver, orderID, preimage); err != nil {
		return err
	}
	s.logger.Info("Order completed",
		zap.String("order_id", orderID),
		zap.String("resolver", resolver.Hex()))
	return nil
}

// Cancel validates and then refunds the order on the escrow ledger.
func (s *Service) Cancel(ctx context.Context, caller common.Address, orderID string) error {
	if err := s.ValidateCancel(ctx, orderID, caller); err != nil {
		s.logger.Debug("Cancellation rejected",
			zap.String("order_id", orderID),
			zap.String("caller", caller.Hex()),
			zap.Error(err))
		return err
	}
	if err := s.ledger.Refund(ctx, caller, orderID); err != nil {
		return err
	}
	s.logger.Info("Order refunded", zap.String("order_id", orderID))
	return nil
}

// GetOrder returns the order or swap.ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*swap.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// IsOrderReady reports whether the order is still claimable: pending
// with an unexpired timelock. Unknown orders are simply not ready.
func (s *Service) IsOrderReady(ctx context.Context, orderID string) (bool, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, swap.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return order.Status == swap.StatusPending && s.now().Before(order.Timelock), nil
}

// GetStats returns order counts by state.
func (s *Service) GetStats(ctx context.Context) (swap.Stats, error) {
	return s.store.Stats(ctx)
}
