package relayer

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/crosslane/swapbridge/pkg/config"
	"github.com/crosslane/swapbridge/pkg/escrow"
	"github.com/crosslane/swapbridge/pkg/orderstore"
	"github.com/crosslane/swapbridge/pkg/policy"
	relayengine "github.com/crosslane/swapbridge/pkg/relayer"
	"github.com/crosslane/swapbridge/pkg/resolver"
	"github.com/crosslane/swapbridge/pkg/swap"
	"github.com/crosslane/swapbridge/pkg/target"
)

type stubTargetClient struct{}

func (stubTargetClient) Submit(_ context.Context, sub target.Submission) (*target.Receipt, error) {
	return &target.Receipt{CommandID: sub.CommandID, TxHash: "0xstub"}, nil
}

type apiFixture struct {
	server *httptest.Server
	ledger *escrow.Ledger
	sender common.Address
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := orderstore.NewMemory()
	owner := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	sender := common.HexToAddress("0x1111111111111111111111111111111111111111")
	limits := policy.Limits{
		FeeBasisPoints:    10,
		MinAmount:         big.NewInt(1),
		MaxAmount:         new(big.Int),
		MinTimelockOffset: time.Hour,
		MaxTimelockOffset: 30 * 24 * time.Hour,
	}

	logger := zap.NewNop()
	ledger := escrow.NewLedger(owner, limits, store, logger)
	t.Cleanup(ledger.Close)

	svc := resolver.NewService(store, ledger, logger)
	engine := relayengine.NewEngine(relayengine.Config{}, ledger, &target.Encoder{
		Destination:   "bridge::target",
		SourceChainID: "escrow-test",
	}, stubTargetClient{}, store, logger)

	s := NewServer(&config.Config{})
	srv := httptest.NewServer(s.newRouter(svc, store, engine, logger))
	t.Cleanup(srv.Close)

	ledger.Credit(sender, big.NewInt(1000000000000000000))
	return &apiFixture{server: srv, ledger: ledger, sender: sender}
}

func (f *apiFixture) createOrder(t *testing.T, preimageSeed string) *swap.Order {
	t.Helper()
	order, err := f.ledger.CreateSwap(
		context.Background(),
		f.sender,
		[]byte("rc"),
		swap.HashPreimage([]byte(preimageSeed)),
		time.Now().Add(2*time.Hour),
		big.NewInt(100000000000000000),
	)
	if err != nil {
		t.Fatalf("CreateSwap() failed: %v", err)
	}
	return order
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", url, err)
		}
	}
}

func TestAPI_HealthAndReady(t *testing.T) {
	f := newAPIFixture(t)
	getJSON(t, f.server.URL+"/health", http.StatusOK, nil)
	getJSON(t, f.server.URL+"/ready", http.StatusOK, nil)
}

func TestAPI_GetOrder(t *testing.T) {
	f := newAPIFixture(t)
	order := f.createOrder(t, "api-get")

	var resp orderResponse
	getJSON(t, f.server.URL+"/api/v1/orders/"+order.ID, http.StatusOK, &resp)

	if resp.ID != order.ID {
		t.Errorf("id = %s, want %s", resp.ID, order.ID)
	}
	if resp.Status != "pending" {
		t.Errorf("status = %s, want pending", resp.Status)
	}
	if resp.Amount != order.Amount.String() {
		t.Errorf("amount = %s, want %s", resp.Amount, order.Amount)
	}
	if resp.RecipientCommitment != "0x7263" {
		t.Errorf("recipient commitment = %s, want 0x7263", resp.RecipientCommitment)
	}
	if resp.Preimage != nil {
		t.Error("pending order must not expose a preimage")
	}

	getJSON(t, f.server.URL+"/api/v1/orders/0xmissing", http.StatusNotFound, nil)
}

func TestAPI_OrderReady(t *testing.T) {
	f := newAPIFixture(t)
	order := f.createOrder(t, "api-ready")

	var resp struct {
		ID    string `json:"id"`
		Ready bool   `json:"ready"`
	}
	getJSON(t, f.server.URL+"/api/v1/orders/"+order.ID+"/ready", http.StatusOK, &resp)
	if !resp.Ready {
		t.Error("pending unexpired order should be ready")
	}

	// Unknown orders are not ready rather than an error
	getJSON(t, f.server.URL+"/api/v1/orders/0xmissing/ready", http.StatusOK, &resp)
	if resp.Ready {
		t.Error("unknown order must not be ready")
	}
}

func TestAPI_ListOrdersAndStats(t *testing.T) {
	f := newAPIFixture(t)
	f.createOrder(t, "api-list-1")
	f.createOrder(t, "api-list-2")

	var listResp struct {
		Orders []orderResponse `json:"orders"`
	}
	getJSON(t, f.server.URL+"/api/v1/orders", http.StatusOK, &listResp)
	if len(listResp.Orders) != 2 {
		t.Errorf("expected 2 orders, got %d", len(listResp.Orders))
	}

	var stats struct {
		Total     int `json:"total"`
		Completed int `json:"completed"`
		Cancelled int `json:"cancelled"`
		Pending   int `json:"pending"`
	}
	getJSON(t, f.server.URL+"/api/v1/stats", http.StatusOK, &stats)
	if stats.Total != 2 || stats.Pending != 2 {
		t.Errorf("stats = %+v, want 2 total / 2 pending", stats)
	}
}
