package resolver

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// MockEscrowLedger is a mock implementation of EscrowLedger
type MockEscrowLedger struct {
	ClaimSwapFunc func(ctx context.Context, resolver common.Address, orderID string, preimage []byte) error
	RefundFunc    func(ctx context.Context, caller common.Address, orderID string) error
}

func (m *MockEscrowLedger) ClaimSwap(ctx context.Context, resolver common.Address, orderID string, preimage []byte) error {
	if m.ClaimSwapFunc != nil {
		return m.ClaimSwapFunc(ctx, resolver, orderID, preimage)
	}
	return nil
}

func (m *MockEscrowLedger) Refund(ctx context.Context, caller common.Address, orderID string) error {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, caller, orderID)
	}
	return nil
}
