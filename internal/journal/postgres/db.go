package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const (
	// DefaultQueryTimeout is applied to individual queries to prevent
	// runaway SQL from holding connections indefinitely.
	DefaultQueryTimeout = 30 * time.Second

	defaultStatementTimeoutMS = 30000
)

type DB struct {
	*sql.DB
}

type Config struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	StatementTimeoutMS int
}

func New(cfg Config) (*DB, error) {
	statementTimeoutMS := cfg.StatementTimeoutMS
	if statementTimeoutMS <= 0 {
		statementTimeoutMS = defaultStatementTimeoutMS
	}

	connURL := appendStatementTimeout(cfg.URL, statementTimeoutMS)

	db, err := sql.Open("postgres", connURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{db}, nil
}

// appendStatementTimeout appends statement_timeout to the connection URL
// so it applies to all connections in the pool, not just one session.
func appendStatementTimeout(url string, timeoutMS int) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "options=-c%20statement_timeout%3D" + strconv.Itoa(timeoutMS)
}

// EnsureSchema creates the journal tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transfer_sessions (
			session_id       UUID PRIMARY KEY,
			network          TEXT NOT NULL,
			contract_address TEXT NOT NULL,
			sender           TEXT NOT NULL,
			recipient        TEXT NOT NULL,
			total_count      INT NOT NULL,
			started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at         TIMESTAMPTZ,
			outcome          TEXT
		)
	`); err != nil {
		return fmt.Errorf("create transfer_sessions: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transfer_records (
			session_id   UUID NOT NULL REFERENCES transfer_sessions(session_id) ON DELETE CASCADE,
			position     INT NOT NULL,
			unit_id      TEXT NOT NULL,
			tx_hash      TEXT NOT NULL,
			status       TEXT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			settled_at   TIMESTAMPTZ,
			PRIMARY KEY (session_id, position)
		)
	`); err != nil {
		return fmt.Errorf("create transfer_records: %w", err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
