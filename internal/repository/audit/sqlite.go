package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
)

// SQLiteRepo keeps the audit trail in a local SQLite file. The table rejects
// UPDATE and DELETE at the database level.
type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLite(path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize audit schema: %w", err)
	}
	return &SQLiteRepo{db: conn}, nil
}

func initSchema(conn *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		fields TEXT NOT NULL DEFAULT '',
		ts TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_entries(run_id, seq);

	CREATE TRIGGER IF NOT EXISTS audit_entries_no_update BEFORE UPDATE ON audit_entries
	BEGIN
		SELECT RAISE(ABORT, 'audit entries are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS audit_entries_no_delete BEFORE DELETE ON audit_entries
	BEGIN
		SELECT RAISE(ABORT, 'audit entries are append-only');
	END;
	`
	_, err := conn.Exec(schema)
	return err
}

// Append inserts e and returns its sequence number.
func (r *SQLiteRepo) Append(ctx context.Context, e domaudit.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	var fields string
	if len(e.Fields) > 0 {
		data, err := json.Marshal(e.Fields)
		if err != nil {
			return "", fmt.Errorf("marshal fields: %w", err)
		}
		fields = string(data)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (run_id, stage, outcome, detail, fields, ts)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Stage, string(e.Outcome), e.Detail, fields, e.Timestamp.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert audit entry %s: %w", e.RunID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("audit entry id: %w", err)
	}
	return strconv.FormatInt(seq, 10), nil
}

// List returns the run's entries in insertion order; limit <= 0 returns all.
func (r *SQLiteRepo) List(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, run_id, stage, outcome, detail, fields, ts
		 FROM audit_entries WHERE run_id = ? ORDER BY seq LIMIT ?`, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domaudit.Entry
	for rows.Next() {
		var (
			e       domaudit.Entry
			seq     int64
			outcome string
			fields  string
		)
		if err := rows.Scan(&seq, &e.RunID, &e.Stage, &outcome, &e.Detail, &fields, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = strconv.FormatInt(seq, 10)
		e.Outcome = domaudit.Outcome(outcome)
		if fields != "" {
			if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal fields of %d: %w", seq, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping checks the database is usable.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}
