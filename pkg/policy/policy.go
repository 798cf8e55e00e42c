// Package policy contains the pure fee and limit calculations applied
// at order creation. Everything here is side-effect free so the ledger
// rules can be tested exhaustively without any chain or store state.
package policy

import (
	"math/big"
	"time"

	"github.com/crosslane/swapbridge/pkg/swap"
)

const basisPointDenominator = 10000

// Limits is the creation-time validation snapshot. The ledger reads it
// on every createSwap; changing it never affects existing orders.
type Limits struct {
	FeeBasisPoints    uint32
	MinAmount         *big.Int
	MaxAmount         *big.Int
	MinTimelockOffset time.Duration
	MaxTimelockOffset time.Duration
}

// NetAmount returns gross minus the bridge fee:
// gross - floor(gross * feeBps / 10000).
func NetAmount(gross *big.Int, feeBps uint32) *big.Int {
	fee := new(big.Int).Mul(gross, big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(basisPointDenominator))
	return new(big.Int).Sub(gross, fee)
}

// Fee returns the bridge fee portion of a gross amount.
func Fee(gross *big.Int, feeBps uint32) *big.Int {
	fee := new(big.Int).Mul(gross, big.NewInt(int64(feeBps)))
	return fee.Div(fee, big.NewInt(basisPointDenominator))
}

// ValidateAmount checks that amount falls within [min, max].
func ValidateAmount(amount, min, max *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return swap.ErrAmountOutOfRange
	}
	if min != nil && amount.Cmp(min) < 0 {
		return swap.ErrAmountOutOfRange
	}
	if max != nil && max.Sign() > 0 && amount.Cmp(max) > 0 {
		return swap.ErrAmountOutOfRange
	}
	return nil
}

// ValidateTimelock checks that the absolute expiry falls within
// [now+minOffset, now+maxOffset].
func ValidateTimelock(timelock, now time.Time, minOffset, maxOffset time.Duration) error {
	if timelock.Before(now.Add(minOffset)) {
		return swap.ErrTimelockOutOfRange
	}
	if maxOffset > 0 && timelock.After(now.Add(maxOffset)) {
		return swap.ErrTimelockOutOfRange
	}
	return nil
}
