// Package store implements the durable message log: append-if-absent by
// message id, ordered history, idempotent schema init, backed by SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one durable log record.
type Entry struct {
	ID      string
	Sender  string
	Content string
	At      time.Time
}

// Log is a process-local, concurrency-safe append-only message store keyed
// by node id.
type Log struct {
	db *sql.DB
}

// Open creates (or reuses) the on-disk database for nodeID and ensures its
// schema exists. The caller owns the returned Log and must Close it.
func Open(nodeID string) (*Log, error) {
	path := fmt.Sprintf("%s_chat.db", nodeID)
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	// database/sql pools connections internally; sqlite3 itself only
	// tolerates one writer, so keep the pool to a single connection and let
	// the driver serialize writes rather than surface SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	l := &Log{db: db}
	if err := l.init(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) init() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			ts DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// Append inserts (id, sender, content) if id is not already present. A
// duplicate id is silently a no-op, matching applyCommit's idempotence
// requirement; the in-memory seenIds check is the fast path, this is the
// durable backstop.
func (l *Log) Append(id, sender, content string) error {
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO messages (id, sender, content) VALUES (?, ?, ?)`,
		id, sender, content,
	)
	if err != nil {
		return fmt.Errorf("store: append %s: %w", id, err)
	}
	return nil
}

// History returns every entry in append order.
func (l *Log) History() ([]Entry, error) {
	rows, err := l.db.Query(`SELECT id, sender, content, ts FROM messages ORDER BY ts ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Sender, &e.Content, &e.At); err != nil {
			return nil, fmt.Errorf("store: scanning history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
