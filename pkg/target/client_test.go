package target

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testSubmission() Submission {
	return Submission{
		CommandID:   "cmd-1",
		Destination: "bridge::target",
		Payload:     []byte(`{"order_id":"0xorder"}`),
		Value:       "99.9",
		GasBudget:   300000,
	}
}

func TestSubmit_Accepted(t *testing.T) {
	var gotPath string
	var gotSub Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotSub); err != nil {
			t.Errorf("failed to decode submission: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Receipt{
			CommandID:  "cmd-1",
			TxHash:     "0xtxhash",
			AcceptedAt: time.Now().UTC(),
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	receipt, err := client.Submit(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if gotPath != "/v1/submissions" {
		t.Errorf("path = %s, want /v1/submissions", gotPath)
	}
	if gotSub.CommandID != "cmd-1" {
		t.Errorf("submitted command id = %s, want cmd-1", gotSub.CommandID)
	}
	if receipt.TxHash != "0xtxhash" {
		t.Errorf("receipt tx hash = %s, want 0xtxhash", receipt.TxHash)
	}
}

func TestSubmit_DuplicateIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(Receipt{CommandID: "cmd-1", TxHash: "0xearlier"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	receipt, err := client.Submit(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Submit() on duplicate failed: %v", err)
	}
	if receipt.TxHash != "0xearlier" {
		t.Errorf("receipt tx hash = %s, want 0xearlier", receipt.TxHash)
	}
}

func TestSubmit_DuplicateWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	receipt, err := client.Submit(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Submit() on bodyless duplicate failed: %v", err)
	}
	if receipt.CommandID != "cmd-1" {
		t.Errorf("receipt command id = %s, want cmd-1", receipt.CommandID)
	}
}

func TestSubmit_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Submit(context.Background(), testSubmission())

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if !deliveryErr.Retryable {
		t.Error("5xx should be retryable")
	}
}

func TestSubmit_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "malformed intent", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Submit(context.Background(), testSubmission())

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if deliveryErr.Retryable {
		t.Error("4xx should be permanent")
	}
}

func TestSubmit_NetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Submit(context.Background(), testSubmission())

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if !deliveryErr.Retryable {
		t.Error("network failure should be retryable")
	}
}
