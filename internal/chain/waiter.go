package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/recepoksuz/nft-transferd/internal/chain/rpc"
	"github.com/recepoksuz/nft-transferd/internal/circuitbreaker"
	"github.com/recepoksuz/nft-transferd/internal/metrics"
	"github.com/recepoksuz/nft-transferd/internal/ratelimit"
	"github.com/recepoksuz/nft-transferd/internal/retry"
)

// ErrReverted means the transaction was mined but its execution failed.
var ErrReverted = errors.New("transaction reverted on chain")

// ErrConfirmTimeout means finality was not observed within the configured
// window. Treated identically to a revert by callers.
var ErrConfirmTimeout = errors.New("confirmation timed out")

// FinalityWaiter observes eventual on-chain finality for one submission
// handle. WaitForFinality blocks until the transaction is irreversibly
// accepted (nil) or definitively rejected (non-nil), including timeout.
type FinalityWaiter interface {
	WaitForFinality(ctx context.Context, txHash string) error
}

const defaultPollInterval = 3 * time.Second

// Waiter polls an EVM JSON-RPC endpoint for a transaction receipt until the
// receipt is minConfirmations blocks deep. Transient RPC errors are retried
// within the confirmation window; terminal ones abort the watch.
type Waiter struct {
	client           rpc.RPCClient
	limiter          *ratelimit.Limiter
	breaker          *circuitbreaker.Breaker
	minConfirmations int64
	pollInterval     time.Duration
	confirmTimeout   time.Duration
	logger           *slog.Logger
}

const endpointLabel = "chain"

func NewWaiter(
	client rpc.RPCClient,
	limiter *ratelimit.Limiter,
	minConfirmations int64,
	pollInterval time.Duration,
	confirmTimeout time.Duration,
	logger *slog.Logger,
) *Waiter {
	if minConfirmations < 1 {
		minConfirmations = 1
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	w := &Waiter{
		client:           client,
		limiter:          limiter,
		minConfirmations: minConfirmations,
		pollInterval:     pollInterval,
		confirmTimeout:   confirmTimeout,
		logger:           logger.With("component", "finality_waiter"),
	}
	w.breaker = circuitbreaker.New(circuitbreaker.Config{
		OnStateChange: func(from, to circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(endpointLabel).Set(float64(to))
			w.logger.Warn("chain circuit breaker state change", "from", from, "to", to)
		},
	})
	return w
}

func (w *Waiter) WaitForFinality(ctx context.Context, txHash string) error {
	if w.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.confirmTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		done, err := w.checkOnce(ctx, txHash)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrConfirmTimeout, txHash)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkOnce performs one receipt poll. It returns (true, nil) when the
// transaction is final, (false, nil) when the watch should keep polling, and
// a non-nil error for terminal outcomes.
func (w *Waiter) checkOnce(ctx context.Context, txHash string) (bool, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return false, w.mapContextErr(err, txHash)
	}
	if err := w.breaker.Allow(); err != nil {
		// Circuit open: back off via the poll ticker rather than failing
		// the watch outright.
		return false, nil
	}

	receipt, err := w.client.GetTransactionReceipt(ctx, txHash)
	ratelimit.RecordRPCCall(endpointLabel, "eth_getTransactionReceipt", err)
	if err != nil {
		w.breaker.RecordFailure()
		if retry.Classify(err).IsTransient() {
			w.logger.Debug("transient receipt poll error", "tx_hash", txHash, "error", err)
			return false, nil
		}
		return false, fmt.Errorf("get receipt %s: %w", txHash, err)
	}
	w.breaker.RecordSuccess()

	if receipt == nil {
		return false, nil
	}
	if receipt.Status == "0x0" {
		return false, fmt.Errorf("%w: %s", ErrReverted, txHash)
	}

	receiptBlock, err := parseReceiptBlock(receipt)
	if err != nil {
		return false, err
	}

	head, err := w.client.GetBlockNumber(ctx)
	ratelimit.RecordRPCCall(endpointLabel, "eth_blockNumber", err)
	if err != nil {
		if retry.Classify(err).IsTransient() {
			return false, nil
		}
		return false, fmt.Errorf("get head for %s: %w", txHash, err)
	}

	confirmations := head - receiptBlock + 1
	if confirmations < w.minConfirmations {
		w.logger.Debug("awaiting confirmations",
			"tx_hash", txHash,
			"confirmations", confirmations,
			"required", w.minConfirmations,
		)
		return false, nil
	}
	return true, nil
}

func (w *Waiter) mapContextErr(err error, txHash string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrConfirmTimeout, txHash)
	}
	return err
}

func parseReceiptBlock(receipt *rpc.TransactionReceipt) (int64, error) {
	block, err := rpc.ParseHexQuantity(receipt.BlockNumber)
	if err != nil {
		return 0, fmt.Errorf("receipt block number: %w", err)
	}
	return block, nil
}
