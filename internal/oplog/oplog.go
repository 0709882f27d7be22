// Package oplog keeps a local append-only audit trail of durable
// operations (creates, closes, claims, sync outcomes) in a SQLite database
// under the repository's .git directory. The trail is local bookkeeping:
// it is never merged and never pushed.
package oplog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS ops (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	at       DATETIME NOT NULL,
	actor    TEXT NOT NULL,
	op       TEXT NOT NULL,
	item_id  TEXT NOT NULL DEFAULT '',
	detail   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ops_item ON ops(item_id);
`

// Entry is one recorded operation.
type Entry struct {
	ID     int64
	At     time.Time
	Actor  string
	Op     string
	ItemID string
	Detail string
}

// Log is an open audit database.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// busy_timeout covers concurrent lb processes appending at once.
	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Record appends one operation. Errors are returned but callers treat the
// audit trail as best effort; a failed append never fails the operation
// it describes.
func (l *Log) Record(op, actor, itemID, detail string) error {
	_, err := l.db.Exec(
		"INSERT INTO ops (at, actor, op, item_id, detail) VALUES (?, ?, ?, ?, ?)",
		time.Now().UTC(), actor, op, itemID, detail,
	)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		"SELECT id, at, actor, op, item_id, detail FROM ops ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Actor, &e.Op, &e.ItemID, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ForItem returns all entries for one item, oldest first.
func (l *Log) ForItem(itemID string) ([]Entry, error) {
	rows, err := l.db.Query(
		"SELECT id, at, actor, op, item_id, detail FROM ops WHERE item_id = ? ORDER BY id ASC",
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Actor, &e.Op, &e.ItemID, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *Log) Close() error {
	return l.db.Close()
}
