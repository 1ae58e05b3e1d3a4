package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newNodeServer(t *testing.T, handler func(req Request) Response) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := handler(req)
		resp.JSONRPC = "2.0"
		resp.ID = req.ID
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestGetBlockNumber(t *testing.T) {
	srv := newNodeServer(t, func(req Request) Response {
		assert.Equal(t, "eth_blockNumber", req.Method)
		return Response{Result: json.RawMessage(`"0x10"`)}
	})
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	head, err := c.GetBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(16), head)
}

func TestGetTransactionReceipt_Pending(t *testing.T) {
	srv := newNodeServer(t, func(req Request) Response {
		assert.Equal(t, "eth_getTransactionReceipt", req.Method)
		return Response{Result: json.RawMessage(`null`)}
	})
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	receipt, err := c.GetTransactionReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Nil(t, receipt, "pending transaction answers null, not an error")
}

func TestGetTransactionReceipt_Mined(t *testing.T) {
	srv := newNodeServer(t, func(req Request) Response {
		require.Equal(t, "0xabc", req.Params[0])
		return Response{Result: json.RawMessage(`{
			"transactionHash": "0xabc",
			"blockNumber": "0x64",
			"status": "0x1"
		}`)}
	})
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	receipt, err := c.GetTransactionReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, "0x64", receipt.BlockNumber)
	assert.Equal(t, "0x1", receipt.Status)
}

func TestGetTransactionReceipt_NodeError(t *testing.T) {
	srv := newNodeServer(t, func(req Request) Response {
		return Response{Error: &RPCError{Code: -32005, Message: "limit exceeded"}}
	})
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	_, err := c.GetTransactionReceipt(context.Background(), "0xabc")
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32005, rpcErr.Code)
}

func TestCall_LogsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	c := NewClient(srv.URL, logger)
	_, err := c.GetBlockNumber(context.Background())
	require.Error(t, err)

	assert.Contains(t, logBuf.String(), "chain_rpc")
	assert.Contains(t, logBuf.String(), "503")
}

func TestParseHexQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0x0", 0, true},
		{"0x10", 16, true},
		{"0xde0b6b3", 232830643, true},
		{"10", 16, true},
		{"0x", 0, false},
		{"", 0, false},
		{"0xzz", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseHexQuantity(tc.in)
		if tc.ok {
			require.NoError(t, err, "input %q", tc.in)
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		} else {
			assert.Error(t, err, "input %q", tc.in)
		}
	}
}
