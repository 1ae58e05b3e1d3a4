package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/recepoksuz/nft-transferd/internal/domain/model"
)

// RecordEventType categorizes batch lifecycle events published to the
// presentation-layer stream.
type RecordEventType string

const (
	EventBatchStarted   RecordEventType = "BATCH_STARTED"
	EventUnitSubmitted  RecordEventType = "UNIT_SUBMITTED"
	EventSignerRejected RecordEventType = "SIGNER_REJECTED"
	EventUnitSkipped    RecordEventType = "UNIT_SKIPPED"
	EventUnitConfirmed  RecordEventType = "UNIT_CONFIRMED"
	EventUnitFailed     RecordEventType = "UNIT_FAILED"
	EventBatchComplete  RecordEventType = "BATCH_COMPLETE"
	EventBatchReset     RecordEventType = "BATCH_RESET"
)

// RecordEvent is one batch lifecycle change, keyed by session and position.
type RecordEvent struct {
	SessionID uuid.UUID          `json:"session_id"`
	Type      RecordEventType    `json:"type"`
	Network   model.Network      `json:"network"`
	UnitID    string             `json:"unit_id,omitempty"`
	Position  int                `json:"position"`
	TxHash    string             `json:"tx_hash,omitempty"`
	Status    model.RecordStatus `json:"status,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	At        time.Time          `json:"at"`
}
