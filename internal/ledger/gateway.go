package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"coordination-service/internal/apperrors"
	"coordination-service/internal/config"
)

// GatewayClient reaches the ledger through an HTTP gateway peer. One
// transaction per call; the gateway is assumed to apply submits atomically
// and to reject duplicates, so a failed call never leaves a partial write
// behind from this service's perspective.
type GatewayClient struct {
	baseURL string
	channel string
	client  *http.Client
}

type gatewayRequest struct {
	Contract  string   `json:"contract"`
	Operation string   `json:"operation"`
	Args      []string `json:"args"`
	MSPID     string   `json:"mspId"`
}

type gatewayResponse struct {
	Success bool            `json:"success"`
	TxID    string          `json:"txId"`
	Payload json.RawMessage `json:"payload"`
	Message string          `json:"message"`
}

func NewGatewayClient(cfg config.LedgerConfig) *GatewayClient {
	return &GatewayClient{
		baseURL: cfg.GatewayURL,
		channel: cfg.Channel,
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		},
	}
}

// Evaluate runs a read-only query against the contract.
func (g *GatewayClient) Evaluate(ctx context.Context, id Identity, contract, operation string, args ...string) ([]byte, error) {
	return g.call(ctx, id, "evaluate", contract, operation, args)
}

// Submit sends a durable write through the gateway and waits for commit.
func (g *GatewayClient) Submit(ctx context.Context, id Identity, contract, operation string, args ...string) ([]byte, error) {
	return g.call(ctx, id, "submit", contract, operation, args)
}

func (g *GatewayClient) call(ctx context.Context, id Identity, mode, contract, operation string, args []string) ([]byte, error) {
	if args == nil {
		args = []string{}
	}

	body, err := json.Marshal(gatewayRequest{
		Contract:  contract,
		Operation: operation,
		Args:      args,
		MSPID:     id.MSPID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	url := fmt.Sprintf("%s/api/channels/%s/%s", g.baseURL, g.channel, mode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MSP-ID", id.MSPID)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s.%s: %v", apperrors.ErrLedgerFailure, mode, contract, operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read gateway response: %v", apperrors.ErrLedgerFailure, err)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed gateway response: %v", apperrors.ErrLedgerFailure, err)
	}

	if resp.StatusCode != http.StatusOK || !parsed.Success {
		slog.Error("Ledger gateway call failed",
			"mode", mode,
			"contract", contract,
			"operation", operation,
			"status", resp.StatusCode,
			"message", parsed.Message)
		return nil, fmt.Errorf("%w: %s.%s: %s", apperrors.ErrLedgerFailure, contract, operation, parsed.Message)
	}

	return parsed.Payload, nil
}
