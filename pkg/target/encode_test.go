package target

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/crosslane/swapbridge/pkg/swap"
)

func testOrder() *swap.Order {
	timelock := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	// 99.9 ETH in wei
	amount, _ := new(big.Int).SetString("99900000000000000000", 10)
	return &swap.Order{
		ID:                  "0xorder",
		Sender:              common.HexToAddress("0x1111111111111111111111111111111111111111"),
		RecipientCommitment: []byte{0xde, 0xad, 0xbe, 0xef},
		Amount:              amount,
		Hashlock:            swap.HashPreimage([]byte("secret")),
		Timelock:            timelock,
		Status:              swap.StatusPending,
	}
}

func TestEncode(t *testing.T) {
	enc := &Encoder{
		Destination:   "bridge::target",
		SourceChainID: "escrow-local",
		GasBudget:     300000,
	}
	order := testOrder()

	sub, err := enc.Encode(order)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if sub.CommandID == "" {
		t.Error("expected a command id")
	}
	if sub.Destination != "bridge::target" {
		t.Errorf("destination = %s, want bridge::target", sub.Destination)
	}
	if sub.GasBudget != 300000 {
		t.Errorf("gas budget = %d, want 300000", sub.GasBudget)
	}
	if sub.Value != "99.9" {
		t.Errorf("value = %s, want 99.9", sub.Value)
	}

	var intent struct {
		OrderID             string `json:"order_id"`
		SourceChainID       string `json:"source_chain_id"`
		Sender              string `json:"sender"`
		RecipientCommitment string `json:"recipient_commitment"`
		Amount              string `json:"amount"`
		Hashlock            string `json:"hashlock"`
		Timelock            int64  `json:"timelock"`
	}
	if err := json.Unmarshal(sub.Payload, &intent); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if intent.OrderID != order.ID {
		t.Errorf("order_id = %s, want %s", intent.OrderID, order.ID)
	}
	if intent.SourceChainID != "escrow-local" {
		t.Errorf("source_chain_id = %s, want escrow-local", intent.SourceChainID)
	}
	if intent.Sender != order.Sender.Hex() {
		t.Errorf("sender = %s, want %s", intent.Sender, order.Sender.Hex())
	}
	if intent.RecipientCommitment != "0xdeadbeef" {
		t.Errorf("recipient_commitment = %s, want 0xdeadbeef", intent.RecipientCommitment)
	}
	if intent.Amount != "99.9" {
		t.Errorf("amount = %s, want 99.9", intent.Amount)
	}
	if intent.Hashlock != order.Hashlock.Hex() {
		t.Errorf("hashlock = %s, want %s", intent.Hashlock, order.Hashlock.Hex())
	}
	if intent.Timelock != order.Timelock.Unix() {
		t.Errorf("timelock = %d, want %d", intent.Timelock, order.Timelock.Unix())
	}
}

func TestEncode_FreshCommandIDs(t *testing.T) {
	enc := &Encoder{Destination: "bridge::target", SourceChainID: "escrow-local"}
	order := testOrder()

	a, err := enc.Encode(order)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	b, err := enc.Encode(order)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if a.CommandID == b.CommandID {
		t.Error("expected distinct command ids for repeated encodes")
	}
}

func TestWeiToDecimalString(t *testing.T) {
	tests := []struct {
		wei  string
		want string
	}{
		{"0", "0"},
		{"1", "0.000000000000000001"},
		{"1000000000000000000", "1"},
		{"99900000000000000000", "99.9"},
		{"1500000000000000000", "1.5"},
	}

	for _, tt := range tests {
		wei, _ := new(big.Int).SetString(tt.wei, 10)
		if got := WeiToDecimalString(wei); got != tt.want {
			t.Errorf("WeiToDecimalString(%s) = %s, want %s", tt.wei, got, tt.want)
		}
	}
}

func TestDecimalStringToWei(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1", "1000000000000000000", false},
		{"99.9", "99900000000000000000", false},
		{"0.000000000000000001", "1", false},
		{"0.0000000000000000001", "", true}, // sub-wei precision
		{"not-a-number", "", true},
	}

	for _, tt := range tests {
		got, err := DecimalStringToWei(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("DecimalStringToWei(%s) expected error, got %s", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("DecimalStringToWei(%s) failed: %v", tt.in, err)
			continue
		}
		want, _ := new(big.Int).SetString(tt.want, 10)
		if got.Cmp(want) != 0 {
			t.Errorf("DecimalStringToWei(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestWeiDecimalRoundTrip(t *testing.T) {
	values := []string{"1", "999", "1000000000000000000", "123456789012345678901234567890"}
	for _, v := range values {
		wei, _ := new(big.Int).SetString(v, 10)
		back, err := DecimalStringToWei(WeiToDecimalString(wei))
		if err != nil {
			t.Errorf("round trip of %s failed: %v", v, err)
			continue
		}
		if back.Cmp(wei) != 0 {
			t.Errorf("round trip of %s = %s", v, back)
		}
	}
}
