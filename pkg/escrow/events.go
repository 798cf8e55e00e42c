package escrow

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies an escrow ledger event.
type EventType string

const (
	EventOrderCreated   EventType = "order_created"
	EventOrderCompleted EventType = "order_completed"
	EventOrderRefunded  EventType = "order_refunded"
)

// Event is one entry in the ledger's append-only event log. Sequence
// numbers start at 1 and are strictly increasing, so a consumer can
// resume from its last processed sequence after a restart.
//
// An order_created event carries every field needed to reconstruct
// the order off-chain. An order_completed event carries the revealed
// preimage: publishing it is intentional, it is the proof that unlocks
// the paired leg on the target ledger.
type Event struct {
	Seq       uint64
	Type      EventType
	OrderID   string
	EmittedAt time.Time

	// Creation fields, set on order_created only.
	Sender              common.Address
	RecipientCommitment []byte
	Amount              *big.Int
	Hashlock            common.Hash
	Timelock            time.Time
	FeeBasisPoints      uint32
	Block               uint64

	// Preimage is set on order_completed only.
	Preimage []byte
}
