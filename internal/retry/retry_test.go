package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	chainrpc "github.com/recepoksuz/nft-transferd/internal/chain/rpc"
	signerrpc "github.com/recepoksuz/nft-transferd/internal/signer/rpc"
)

func TestClassify_MarkedErrors(t *testing.T) {
	assert.Equal(t, ClassTransient, Classify(Transient(errors.New("boom"))).Class)
	assert.Equal(t, ClassTerminal, Classify(Terminal(errors.New("boom"))).Class)

	// Marks survive wrapping.
	wrapped := fmt.Errorf("outer: %w", Transient(errors.New("inner")))
	assert.Equal(t, ClassTransient, Classify(wrapped).Class)
}

func TestClassify_ContextErrors(t *testing.T) {
	assert.Equal(t, ClassTerminal, Classify(context.Canceled).Class)
	assert.Equal(t, ClassTransient, Classify(context.DeadlineExceeded).Class)
}

func TestClassify_ProviderCodes(t *testing.T) {
	cases := []struct {
		code int
		want Class
	}{
		{4001, ClassRejection}, // user rejected
		{4100, ClassTerminal},  // unauthorized
		{4200, ClassTerminal},  // unsupported method
		{4900, ClassTransient}, // provider disconnected
		{-32000, ClassTransient},
		{-32050, ClassTransient},
		{-32603, ClassTransient},
		{-32602, ClassTerminal}, // invalid params
		{-32700, ClassTerminal}, // parse error
	}

	for _, tc := range cases {
		signerErr := &signerrpc.RPCError{Code: tc.code, Message: "x"}
		assert.Equal(t, tc.want, Classify(signerErr).Class, "signer code %d", tc.code)

		chainErr := &chainrpc.RPCError{Code: tc.code, Message: "x"}
		assert.Equal(t, tc.want, Classify(chainErr).Class, "chain code %d", tc.code)
	}
}

func TestClassify_WrappedProviderError(t *testing.T) {
	err := fmt.Errorf("submit transfer 101: %w", &signerrpc.RPCError{Code: 4001, Message: "User rejected the request"})
	d := Classify(err)
	assert.True(t, d.IsRejection())
}

func TestClassify_MessageTokens(t *testing.T) {
	cases := []struct {
		msg  string
		want Class
	}{
		{"User rejected the request", ClassRejection},
		{"user denied transaction signature", ClassRejection},
		{"connection refused", ClassTransient},
		{"http status 503: upstream down", ClassTransient},
		{"too many requests", ClassTransient},
		{"execution reverted", ClassTerminal},
		{"nonce too low", ClassTerminal},
		{"insufficient funds for gas", ClassTerminal},
		{"something inexplicable", ClassTerminal},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(errors.New(tc.msg)).Class, "message %q", tc.msg)
	}
}
