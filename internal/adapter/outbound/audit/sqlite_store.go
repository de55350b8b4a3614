package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		request_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		decision TEXT NOT NULL,
		reason TEXT,
		observed INTEGER NOT NULL DEFAULT 0,
		method TEXT,
		path TEXT,
		source_ip TEXT,
		user_agent TEXT,
		identity_key TEXT,
		principal_id TEXT,
		bot_category TEXT,
		rule_id TEXT,
		retry_after_ms INTEGER
	);`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts);`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_identity ON decisions(identity_key, ts);`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_stage ON decisions(stage, decision);`,
}

// SQLiteStore implements audit.Store on a local SQLite database so decision
// history survives restarts and can be queried with plain SQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. The path ":memory:" yields an ephemeral store, useful in tests.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite audit store: empty path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite audit store: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite audit store: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply audit schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

const insertDecision = `INSERT INTO decisions
	(ts, request_id, stage, decision, reason, observed, method, path,
	 source_ip, user_agent, identity_key, principal_id, bot_category,
	 rule_id, retry_after_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Append inserts records in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, records ...audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertDecision)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		observed := 0
		if rec.Observed {
			observed = 1
		}
		_, err := stmt.ExecContext(ctx,
			rec.Timestamp.UnixMilli(),
			rec.RequestID,
			rec.Stage,
			rec.Decision,
			rec.Reason,
			observed,
			rec.Method,
			rec.Path,
			rec.SourceIP,
			rec.UserAgent,
			rec.IdentityKey,
			rec.PrincipalID,
			rec.BotCategory,
			rec.RuleID,
			rec.RetryAfterMillis,
		)
		if err != nil {
			return fmt.Errorf("insert decision record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

// Flush is a no-op; Append commits transactionally.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Recent returns the n most recent records (newest first).
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]audit.Record, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		ts, request_id, stage, decision, reason, observed, method, path,
		source_ip, user_agent, identity_key, principal_id, bot_category,
		rule_id, retry_after_ms
		FROM decisions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []audit.Record
	for rows.Next() {
		var rec audit.Record
		var ts int64
		var observed int
		if err := rows.Scan(
			&ts,
			&rec.RequestID,
			&rec.Stage,
			&rec.Decision,
			&rec.Reason,
			&observed,
			&rec.Method,
			&rec.Path,
			&rec.SourceIP,
			&rec.UserAgent,
			&rec.IdentityKey,
			&rec.PrincipalID,
			&rec.BotCategory,
			&rec.RuleID,
			&rec.RetryAfterMillis,
		); err != nil {
			return nil, fmt.Errorf("scan decision record: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		rec.Observed = observed != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision records: %w", err)
	}
	return records, nil
}

// Compile-time interface verification.
var _ audit.Store = (*SQLiteStore)(nil)
