package swap

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestComputeOrderID_Deterministic(t *testing.T) {
	sender := common.HexToAddress("0x1111111111111111111111111111111111111111")
	commitment := []byte("recipient-commitment")
	amount := big.NewInt(1000)
	hashlock := HashPreimage([]byte("secret"))
	timelock := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	a := ComputeOrderID(sender, commitment, amount, hashlock, timelock, 7)
	b := ComputeOrderID(sender, commitment, amount, hashlock, timelock, 7)
	if a != b {
		t.Errorf("same parameters produced different ids: %s vs %s", a, b)
	}
	if len(a) != 66 || a[:2] != "0x" {
		t.Errorf("order id should be a 0x-prefixed 32-byte hash, got %s", a)
	}
}

func TestComputeOrderID_Distinct(t *testing.T) {
	sender := common.HexToAddress("0x1111111111111111111111111111111111111111")
	commitment := []byte("recipient-commitment")
	amount := big.NewInt(1000)
	hashlock := HashPreimage([]byte("secret"))
	timelock := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	base := ComputeOrderID(sender, commitment, amount, hashlock, timelock, 7)

	variants := map[string]string{
		"sender":     ComputeOrderID(common.HexToAddress("0x2222222222222222222222222222222222222222"), commitment, amount, hashlock, timelock, 7),
		"commitment": ComputeOrderID(sender, []byte("other-commitment"), amount, hashlock, timelock, 7),
		"amount":     ComputeOrderID(sender, commitment, big.NewInt(1001), hashlock, timelock, 7),
		"hashlock":   ComputeOrderID(sender, commitment, amount, HashPreimage([]byte("other")), timelock, 7),
		"timelock":   ComputeOrderID(sender, commitment, amount, hashlock, timelock.Add(time.Second), 7),
		"block":      ComputeOrderID(sender, commitment, amount, hashlock, timelock, 8),
	}

	for field, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the order id", field)
		}
	}
}

func TestHashPreimage(t *testing.T) {
	preimage := []byte("the quick brown fox")
	h := HashPreimage(preimage)

	if h != HashPreimage(preimage) {
		t.Error("HashPreimage is not deterministic")
	}
	if h == HashPreimage([]byte("the quick brown cat")) {
		t.Error("different preimages produced the same hashlock")
	}
	if h == (common.Hash{}) {
		t.Error("hashlock should not be zero")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	if !StatusCompleted.Terminal() {
		t.Error("completed should be terminal")
	}
	if !StatusRefunded.Terminal() {
		t.Error("refunded should be terminal")
	}
}
