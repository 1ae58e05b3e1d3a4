package model

import "github.com/google/uuid"

// Phase names the orchestrator's state machine position. It is derived, not
// stored: the aggregate state (cursor, guards, error) determines it.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseAwaitingSignature Phase = "awaiting_signature"
	PhaseSubmitted         Phase = "submitted"
	PhaseErrorAtPosition   Phase = "error_at_position"
	PhaseComplete          Phase = "complete"
)

// BatchSnapshot is a read-only view of one batch run, safe to hand to the
// presentation layer. Records are copied; mutating a snapshot has no effect
// on the orchestrator.
type BatchSnapshot struct {
	SessionID            uuid.UUID        `json:"session_id"`
	Params               SessionParams    `json:"params"`
	Queue                []WorkItem       `json:"queue"`
	Records              []TransferRecord `json:"records"`
	CurrentIndex         int              `json:"current_index"`
	TotalCount           int              `json:"total_count"`
	CurrentUnitID        string           `json:"current_unit_id"`
	CurrentTxHash        string           `json:"current_tx_hash"`
	IsTransferring       bool             `json:"is_transferring"`
	IsPending            bool             `json:"is_pending"`
	IsConfirming         bool             `json:"is_confirming"`
	IsComplete           bool             `json:"is_complete"`
	AllSubmitted         bool             `json:"all_submitted"`
	PendingConfirmations int              `json:"pending_confirmations"`
	Error                string           `json:"error,omitempty"`
	FailedUnitID         string           `json:"failed_unit_id,omitempty"`
	Phase                Phase            `json:"phase"`
}
