package target

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crosslane/swapbridge/pkg/swap"
)

// tokenDecimals is the decimal precision the target ledger expects
// amounts in.
const tokenDecimals = 18

// Encoder translates escrow orders into target-ledger submissions.
type Encoder struct {
	// Destination is the target-side bridge endpoint the intent is
	// addressed to.
	Destination string
	// SourceChainID identifies the escrow ledger in the payload.
	SourceChainID string
	// GasBudget is attached to every submission.
	GasBudget uint64
}

// swapIntent is the wire payload carried inside a Submission. The
// recipient commitment stays an opaque hex blob: mapping it to a
// native address is the target chain's concern.
type swapIntent struct {
	OrderID             string `json:"order_id"`
	SourceChainID       string `json:"source_chain_id"`
	Sender              string `json:"sender"`
	RecipientCommitment string `json:"recipient_commitment"`
	Amount              string `json:"amount"`
	Hashlock            string `json:"hashlock"`
	Timelock            int64  `json:"timelock"`
}

// Encode builds the submission for a newly created order. Each call
// produces a fresh command id; the target deduplicates on order id.
func (e *Encoder) Encode(order *swap.Order) (Submission, error) {
	intent := swapIntent{
		OrderID:             order.ID,
		SourceChainID:       e.SourceChainID,
		Sender:              order.Sender.Hex(),
		RecipientCommitment: hexutil.Encode(order.RecipientCommitment),
		Amount:              WeiToDecimalString(order.Amount),
		Hashlock:            order.Hashlock.Hex(),
		Timelock:            order.Timelock.Unix(),
	}
	payload, err := json.Marshal(intent)
	if err != nil {
		return Submission{}, fmt.Errorf("marshal swap intent: %w", err)
	}
	return Submission{
		CommandID:   uuid.NewString(),
		Destination: e.Destination,
		Payload:     payload,
		Value:       WeiToDecimalString(order.Amount),
		GasBudget:   e.GasBudget,
	}, nil
}

// WeiToDecimalString renders a wei amount as an 18-decimal string.
func WeiToDecimalString(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -tokenDecimals).String()
}

// DecimalStringToWei parses an 18-decimal amount string back to wei.
func DecimalStringToWei(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal: %w", err)
	}
	shifted := d.Shift(tokenDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", s, tokenDecimals)
	}
	return shifted.BigInt(), nil
}
