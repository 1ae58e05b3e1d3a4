package signer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/recepoksuz/nft-transferd/internal/circuitbreaker"
	"github.com/recepoksuz/nft-transferd/internal/metrics"
	"github.com/recepoksuz/nft-transferd/internal/ratelimit"
	"github.com/recepoksuz/nft-transferd/internal/retry"
	"github.com/recepoksuz/nft-transferd/internal/signer/rpc"
)

// ErrRejected means the wallet (or its user) declined to sign before anything
// was broadcast. Recoverable via the orchestrator's retry/skip operations.
var ErrRejected = errors.New("signing request rejected by wallet")

// SubmitRequest describes one unit transfer for the wallet to sign.
type SubmitRequest struct {
	ContractAddress string
	Recipient       string
	Sender          string
	UnitID          string
}

// Signer abstracts the external wallet-signing interface. Submit blocks until
// the wallet yields a submission handle (transaction hash) or an error; the
// wallet signs one transaction at a time. Reset clears the wallet bridge's
// error/result state so the next position can be submitted.
type Signer interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Reset(ctx context.Context) error
}

// bridgeClient is the subset of the JSON-RPC client the signer needs.
// Narrowed for testability.
type bridgeClient interface {
	SubmitTransfer(ctx context.Context, params rpc.SubmitParams) (string, error)
	ResetSigner(ctx context.Context) error
}

// Client adapts the wallet-bridge RPC client to the Signer interface, adding
// rate limiting, circuit breaking, and call metrics.
type Client struct {
	bridge  bridgeClient
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

const endpointLabel = "signer"

func NewClient(bridge bridgeClient, limiter *ratelimit.Limiter, logger *slog.Logger) *Client {
	c := &Client{
		bridge:  bridge,
		limiter: limiter,
		logger:  logger.With("component", "signer"),
	}
	c.breaker = circuitbreaker.New(circuitbreaker.Config{
		// Signing is interactive; a handful of consecutive transport failures
		// means the bridge itself is down, not the user.
		FailureThreshold: 3,
		OpenTimeout:      15 * time.Second,
		OnStateChange: func(from, to circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(endpointLabel).Set(float64(to))
			c.logger.Warn("signer circuit breaker state change", "from", from, "to", to)
		},
	})
	return c
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	if err := c.breaker.Allow(); err != nil {
		return "", err
	}

	start := time.Now()
	txHash, err := c.bridge.SubmitTransfer(ctx, rpc.SubmitParams{
		ContractAddress: req.ContractAddress,
		From:            req.Sender,
		To:              req.Recipient,
		TokenID:         req.UnitID,
	})
	metrics.RPCCallLatency.WithLabelValues(endpointLabel, "signer_submitTransfer").Observe(time.Since(start).Seconds())
	ratelimit.RecordRPCCall(endpointLabel, "signer_submitTransfer", err)

	if err != nil {
		if retry.Classify(err).IsRejection() {
			// The bridge round-trip worked; the wallet said no. That must not
			// open the circuit.
			c.breaker.RecordSuccess()
			return "", fmt.Errorf("%w: %s", ErrRejected, err.Error())
		}
		c.breaker.RecordFailure()
		return "", fmt.Errorf("submit transfer %s: %w", req.UnitID, err)
	}
	c.breaker.RecordSuccess()
	return txHash, nil
}

func (c *Client) Reset(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	err := c.bridge.ResetSigner(ctx)
	ratelimit.RecordRPCCall(endpointLabel, "signer_reset", err)
	if err != nil {
		return fmt.Errorf("reset signer: %w", err)
	}
	return nil
}
