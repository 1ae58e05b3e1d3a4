package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Client is a JSON-RPC client for the wallet-bridge sidecar. The bridge signs
// one transfer at a time; Submit blocks until the wallet yields a transaction
// hash or an error.
type Client struct {
	httpClient *http.Client
	bridgeURL  string
	requestID  atomic.Int64
	logger     *slog.Logger
}

func NewClient(bridgeURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		bridgeURL:  bridgeURL,
		logger:     logger.With("component", "signer_bridge"),
	}
}

// SubmitTransfer asks the wallet to sign and broadcast one unit transfer.
// The call does not return until the user approves, declines, or the context
// is done. A decline surfaces as *RPCError with code 4001.
func (c *Client) SubmitTransfer(ctx context.Context, params SubmitParams) (string, error) {
	raw, err := c.call(ctx, "signer_submitTransfer", []interface{}{params})
	if err != nil {
		return "", err
	}
	var result SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("unmarshal submit result: %w", err)
	}
	if result.TxHash == "" {
		return "", fmt.Errorf("bridge returned empty tx hash")
	}
	return result.TxHash, nil
}

// ResetSigner clears the bridge's error/result slot so the next position can
// be submitted.
func (c *Client) ResetSigner(ctx context.Context) error {
	_, err := c.call(ctx, "signer_reset", nil)
	return err
}

// GetStatus reads the bridge's current signing state.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	raw, err := c.call(ctx, "signer_status", nil)
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return &st, nil
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	id := int(c.requestID.Add(1))
	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bridgeURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("bridge request failed", "method", method, "error", err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("bridge returned http error", "method", method, "status", resp.StatusCode)
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		// Code 4001 is the user declining in the wallet; routine, not a fault.
		c.logger.Debug("bridge rpc error", "method", method, "code", rpcResp.Error.Code, "message", rpcResp.Error.Message)
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}
