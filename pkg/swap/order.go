// Package swap holds the domain model for cross-chain atomic swap orders.
package swap

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// OrderStatus represents the lifecycle state of a swap order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusRefunded  OrderStatus = "refunded"
)

// Terminal reports whether the status is a terminal state.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

// Order is the canonical record of a single cross-chain swap intent.
//
// Amount is the net value locked after the bridge fee was deducted at
// creation time. FeeBasisPoints is the fee rate snapshotted when the
// order was created; later policy changes never affect it.
type Order struct {
	ID                  string
	Sender              common.Address
	RecipientCommitment []byte
	Amount              *big.Int
	GrossAmount         *big.Int
	Hashlock            common.Hash
	Timelock            time.Time
	Status              OrderStatus
	FeeBasisPoints      uint32
	CreationBlock       uint64
	CreatedAt           time.Time
	ResolvedAt          *time.Time
	Resolver            *common.Address
	// Preimage is recorded once a claim reveals it. It is public
	// knowledge from that point: the proof that unlocks the paired leg
	// on the other ledger.
	Preimage []byte
}

// Stats summarizes order counts by terminal state. Refunded orders are
// reported as cancelled, matching the resolver query interface.
type Stats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Pending   int64 `json:"pending"`
}

// ComputeOrderID derives the deterministic order identifier from the
// order parameters. Two orders with identical parameters in the same
// block collide, which is exactly the duplicate-submission detection
// the protocol wants; any differing field produces a distinct id.
func ComputeOrderID(
	sender common.Address,
	recipientCommitment []byte,
	amount *big.Int,
	hashlock common.Hash,
	timelock time.Time,
	creationBlock uint64,
) string {
	var timelockBuf, blockBuf [8]byte
	binary.BigEndian.PutUint64(timelockBuf[:], uint64(timelock.Unix()))
	binary.BigEndian.PutUint64(blockBuf[:], creationBlock)

	digest := crypto.Keccak256(
		sender.Bytes(),
		recipientCommitment,
		amount.Bytes(),
		hashlock.Bytes(),
		timelockBuf[:],
		blockBuf[:],
	)
	return common.BytesToHash(digest).Hex()
}

// HashPreimage computes the hashlock commitment for a preimage.
func HashPreimage(preimage []byte) common.Hash {
	return common.Hash(sha256.Sum256(preimage))
}
