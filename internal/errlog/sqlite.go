package errlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS error_records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         TEXT NOT NULL,
	module     TEXT NOT NULL,
	message    TEXT NOT NULL,
	severity   TEXT NOT NULL,
	category   TEXT NOT NULL,
	stack      TEXT,
	user_id    TEXT,
	metadata   TEXT
);
CREATE INDEX IF NOT EXISTS idx_error_records_ts ON error_records(ts);
`

// SQLiteAppender appends error records to a local sqlite file so they
// survive process restarts. Append-only; rows are never updated.
type SQLiteAppender struct {
	db *sql.DB
}

// NewSQLiteAppender opens (creating if needed) the sqlite database at path
// and ensures the error_records table exists.
func NewSQLiteAppender(path string) (*SQLiteAppender, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("errlog.NewSQLiteAppender: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("errlog.NewSQLiteAppender: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("errlog.NewSQLiteAppender: migrate: %w", err)
	}

	return &SQLiteAppender{db: db}, nil
}

// Append writes one record.
func (a *SQLiteAppender) Append(rec Record) error {
	var meta []byte
	if len(rec.Metadata) > 0 {
		meta, _ = json.Marshal(rec.Metadata)
	}

	_, err := a.db.Exec(
		`INSERT INTO error_records (ts, module, message, severity, category, stack, user_id, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		rec.Module,
		rec.Message,
		rec.Severity.String(),
		string(rec.Category),
		rec.Stack,
		rec.UserID,
		string(meta),
	)
	if err != nil {
		return fmt.Errorf("errlog.SQLiteAppender.Append: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (a *SQLiteAppender) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("errlog.SQLiteAppender.Close: %w", err)
	}
	return nil
}
