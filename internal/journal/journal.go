package journal

import (
	"context"

	"github.com/google/uuid"
	"github.com/recepoksuz/nft-transferd/internal/domain/model"
)

// Journal is the durable audit trail of transfer sessions. Writes are
// best-effort from the orchestrator's point of view: a journal failure is
// logged and counted but never blocks batch progress.
type Journal interface {
	// BeginSession records the start of a batch with its immutable parameters.
	BeginSession(ctx context.Context, sessionID uuid.UUID, network model.Network, params model.SessionParams, totalCount int) error

	// AppendRecord persists a newly created transfer record. Skipped units
	// arrive already terminal with an empty tx hash.
	AppendRecord(ctx context.Context, sessionID uuid.UUID, rec model.TransferRecord) error

	// UpdateRecordStatus marks the record at position with its settled
	// outcome.
	UpdateRecordStatus(ctx context.Context, sessionID uuid.UUID, position int, status model.RecordStatus) error

	// EndSession closes the session with a summary outcome such as
	// "complete" or "reset".
	EndSession(ctx context.Context, sessionID uuid.UUID, outcome string) error

	Close() error
}

// Noop discards all writes. Used when no database is configured.
type Noop struct{}

func (Noop) BeginSession(context.Context, uuid.UUID, model.Network, model.SessionParams, int) error {
	return nil
}

func (Noop) AppendRecord(context.Context, uuid.UUID, model.TransferRecord) error { return nil }

func (Noop) UpdateRecordStatus(context.Context, uuid.UUID, int, model.RecordStatus) error {
	return nil
}

func (Noop) EndSession(context.Context, uuid.UUID, string) error { return nil }

func (Noop) Close() error { return nil }
