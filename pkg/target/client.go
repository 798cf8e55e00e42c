package target

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient submits intents to the target ledger's bridge gateway
// over HTTP. Status codes map onto the delivery classification:
// network faults and 5xx are retryable, 4xx are permanent, and 409
// means the intent was already accepted, which at-least-once delivery
// treats as success.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a client for the given gateway base URL.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Submit posts the submission and returns the gateway's receipt.
func (c *HTTPClient) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, PermanentError(fmt.Errorf("marshal submission: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/submissions", bytes.NewReader(body))
	if err != nil {
		return nil, PermanentError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, RetryableError(fmt.Errorf("submit: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var receipt Receipt
		if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
			return nil, RetryableError(fmt.Errorf("decode receipt: %w", err))
		}
		return &receipt, nil

	case resp.StatusCode == http.StatusConflict:
		// Duplicate submission: the intent is already on the target
		// ledger, so report delivery rather than failure.
		c.logger.Debug("Duplicate submission acknowledged", zap.String("command_id", sub.CommandID))
		receipt := &Receipt{CommandID: sub.CommandID, AcceptedAt: time.Now()}
		var dup Receipt
		if err := json.NewDecoder(resp.Body).Decode(&dup); err == nil && dup.TxHash != "" {
			receipt = &dup
		}
		return receipt, nil

	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, RetryableError(fmt.Errorf("gateway returned %d: %s", resp.StatusCode, readBody(resp.Body)))

	default:
		return nil, PermanentError(fmt.Errorf("gateway rejected submission with %d: %s", resp.StatusCode, readBody(resp.Body)))
	}
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 1024))
	return string(b)
}
