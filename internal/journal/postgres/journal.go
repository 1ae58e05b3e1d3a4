package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/recepoksuz/nft-transferd/internal/domain/model"
	"github.com/recepoksuz/nft-transferd/internal/metrics"
)

// Journal persists the transfer audit trail to Postgres.
type Journal struct {
	db *DB
}

func NewJournal(db *DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) BeginSession(ctx context.Context, sessionID uuid.UUID, network model.Network, params model.SessionParams, totalCount int) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO transfer_sessions (session_id, network, contract_address, sender, recipient, total_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, network.String(), params.ContractAddress, params.Sender, params.Recipient, totalCount)
	if err != nil {
		metrics.JournalWriteErrors.WithLabelValues("begin_session").Inc()
		return fmt.Errorf("insert session %s: %w", sessionID, err)
	}
	metrics.JournalWritesTotal.WithLabelValues("begin_session").Inc()
	return nil
}

func (j *Journal) AppendRecord(ctx context.Context, sessionID uuid.UUID, rec model.TransferRecord) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	query := `
		INSERT INTO transfer_records (session_id, position, unit_id, tx_hash, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, position) DO UPDATE SET
			tx_hash = EXCLUDED.tx_hash,
			status = EXCLUDED.status,
			submitted_at = now()
	`
	_, err := j.db.ExecContext(ctx, query, sessionID, rec.Position, rec.UnitID, rec.TxHash, string(rec.Status))
	if err != nil {
		metrics.JournalWriteErrors.WithLabelValues("append_record").Inc()
		return fmt.Errorf("insert record %s pos %d: %w", sessionID, rec.Position, err)
	}
	metrics.JournalWritesTotal.WithLabelValues("append_record").Inc()
	return nil
}

func (j *Journal) UpdateRecordStatus(ctx context.Context, sessionID uuid.UUID, position int, status model.RecordStatus) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := j.db.ExecContext(ctx, `
		UPDATE transfer_records
		SET status = $3, settled_at = now()
		WHERE session_id = $1 AND position = $2
	`, sessionID, position, string(status))
	if err != nil {
		metrics.JournalWriteErrors.WithLabelValues("update_record").Inc()
		return fmt.Errorf("update record %s pos %d: %w", sessionID, position, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		metrics.JournalWriteErrors.WithLabelValues("update_record").Inc()
		return fmt.Errorf("update record %s pos %d: no such record", sessionID, position)
	}
	metrics.JournalWritesTotal.WithLabelValues("update_record").Inc()
	return nil
}

func (j *Journal) EndSession(ctx context.Context, sessionID uuid.UUID, outcome string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx, `
		UPDATE transfer_sessions
		SET ended_at = now(), outcome = $2
		WHERE session_id = $1
	`, sessionID, outcome)
	if err != nil {
		metrics.JournalWriteErrors.WithLabelValues("end_session").Inc()
		return fmt.Errorf("end session %s: %w", sessionID, err)
	}
	metrics.JournalWritesTotal.WithLabelValues("end_session").Inc()
	return nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
