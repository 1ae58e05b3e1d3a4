package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	chainrpc "github.com/recepoksuz/nft-transferd/internal/chain/rpc"
	signerrpc "github.com/recepoksuz/nft-transferd/internal/signer/rpc"
)

type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
	ClassRejection Class = "rejection"
)

// Decision is the outcome of classifying an error from the signer bridge or
// the chain RPC endpoint.
type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

// IsRejection reports a wallet-level decline: the user (or wallet policy)
// refused to sign before anything was broadcast.
func (d Decision) IsRejection() bool {
	return d.Class == ClassRejection
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

// Transient marks err so Classify always treats it as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTransient, reason: "explicit_transient"}
}

// Terminal marks err so Classify always treats it as non-retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTerminal, reason: "explicit_terminal"}
}

// EIP-1193 provider error codes surfaced by wallet bridges.
const (
	codeUserRejected       = 4001
	codeUnauthorized       = 4100
	codeUnsupportedMethod  = 4200
	codeProviderDisconnect = 4900
)

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}

	var signerErr *signerrpc.RPCError
	if errors.As(err, &signerErr) {
		return classifyProviderCode(signerErr.Code)
	}
	var chainErr *chainrpc.RPCError
	if errors.As(err, &chainErr) {
		return classifyProviderCode(chainErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, rejectionMessageTokens) {
		return Decision{Class: ClassRejection, Reason: "message_rejection"}
	}
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

func classifyProviderCode(code int) Decision {
	switch code {
	case codeUserRejected:
		return Decision{Class: ClassRejection, Reason: "provider_user_rejected"}
	case codeUnauthorized, codeUnsupportedMethod:
		return Decision{Class: ClassTerminal, Reason: "provider_terminal"}
	case codeProviderDisconnect:
		return Decision{Class: ClassTransient, Reason: "provider_disconnected"}
	}
	// JSON-RPC server error range is retryable; everything else
	// (parse error, invalid params, execution errors) is not.
	if code <= -32000 && code >= -32099 {
		return Decision{Class: ClassTransient, Reason: "jsonrpc_server_range"}
	}
	if code == -32603 {
		return Decision{Class: ClassTransient, Reason: "jsonrpc_internal"}
	}
	return Decision{Class: ClassTerminal, Reason: "jsonrpc_terminal"}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var rejectionMessageTokens = []string{
	"user rejected",
	"user denied",
	"rejected by user",
	"signature denied",
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"too many requests",
	"rate limit",
	"http status 429",
	"http status 502",
	"http status 503",
	"http status 504",
	"server closed idle connection",
}

var terminalMessageTokens = []string{
	"execution reverted",
	"insufficient funds",
	"nonce too low",
	"replacement transaction underpriced",
	"invalid argument",
	"invalid params",
	"method not found",
	"parse error",
	"not found",
}
