package rpc

import "encoding/json"

type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError carries the wallet bridge's JSON-RPC error. Provider-level codes
// follow EIP-1193 (4001 = user rejected the request).
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// SubmitParams is the argument object for signer_submitTransfer.
type SubmitParams struct {
	ContractAddress string `json:"contractAddress"`
	From            string `json:"from"`
	To              string `json:"to"`
	TokenID         string `json:"tokenId"`
}

// SubmitResult is the bridge's reply once the wallet has signed and
// broadcast the transfer.
type SubmitResult struct {
	TxHash string `json:"txHash"`
}

// Status mirrors the bridge's signing state for one request slot.
type Status struct {
	AwaitingSignature bool   `json:"awaitingSignature"`
	TxHash            string `json:"txHash,omitempty"`
	Error             string `json:"error,omitempty"`
}
