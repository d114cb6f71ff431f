// Package cache persists built graph snapshots keyed by workspace content.
// The key is computed from the cheap manifest walk before any parsing
// happens, so a warm cache skips discovery entirely. Cache failures are
// never fatal: a missing, outdated, or corrupt entry is just a miss.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/pulsar/internal/graph"
)

// ErrCorrupt is returned when a cache entry exists but its payload cannot
// be decoded. The entry is removed so the next load starts clean.
var ErrCorrupt = errors.New("cache entry corrupt")

// DBName is the file name of the snapshot database inside the cache
// directory.
const DBName = "graph.db"

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS graph_snapshots (
    key          TEXT PRIMARY KEY,
    schema_ver   INTEGER NOT NULL,
    tool_version TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    payload      BLOB NOT NULL
);
`

// Store persists graph snapshots in a local SQLite database in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at dbPath, enables WAL mode
// and busy timeout, and creates the schema if it does not exist. Parent
// directories are created as needed.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	// Limit to one connection. SQLite only supports a single writer; using
	// one connection avoids SQLITE_BUSY contention between pooled
	// connections that each need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns the snapshot stored under key. A missing entry and an entry
// written under a different snapshot schema both return (nil, nil): plain
// misses. An undecodable payload returns ErrCorrupt and deletes the entry.
func (s *Store) Load(ctx context.Context, key string) (*graph.Snapshot, error) {
	var (
		schemaVer int
		payload   []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT schema_ver, payload FROM graph_snapshots WHERE key = ?", key).
		Scan(&schemaVer, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: load snapshot %s: %w", key, err)
	}
	if schemaVer != graph.SnapshotSchema {
		return nil, nil
	}

	snap, err := graph.DecodeSnapshot(payload)
	if err != nil {
		s.drop(ctx, key)
		return nil, fmt.Errorf("cache: snapshot %s: %w: %v", key, ErrCorrupt, err)
	}
	return snap, nil
}

// Save upserts the snapshot under key.
func (s *Store) Save(ctx context.Context, key, toolVersion string, snap *graph.Snapshot) error {
	payload, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("cache: save snapshot %s: %w", key, err)
	}

	const q = `
		INSERT INTO graph_snapshots (key, schema_ver, tool_version, payload, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			schema_ver   = excluded.schema_ver,
			tool_version = excluded.tool_version,
			payload      = excluded.payload,
			created_at   = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q, key, snap.Schema, toolVersion, payload); err != nil {
		return fmt.Errorf("cache: save snapshot %s: %w", key, err)
	}
	return nil
}

// drop removes an entry, best effort.
func (s *Store) drop(ctx context.Context, key string) {
	_, _ = s.db.ExecContext(ctx, "DELETE FROM graph_snapshots WHERE key = ?", key)
}

// Status summarizes the cache contents.
type Status struct {
	Entries int
	Bytes   int64
	// NewestAt is the creation time of the most recent entry, zero when
	// the cache is empty.
	NewestAt time.Time
}

// Status reports entry count, total payload size, and the newest entry
// time.
func (s *Store) Status(ctx context.Context) (Status, error) {
	var (
		st     Status
		newest sql.NullString
		bytes  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0), MAX(created_at) FROM graph_snapshots").
		Scan(&st.Entries, &bytes, &newest)
	if err != nil {
		return Status{}, fmt.Errorf("cache: read status: %w", err)
	}
	st.Bytes = bytes.Int64
	if newest.Valid {
		ts, parseErr := parseTimestamp(newest.String)
		if parseErr != nil {
			return Status{}, fmt.Errorf("cache: parse entry timestamp: %w", parseErr)
		}
		st.NewestAt = ts
	}
	return st, nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM graph_snapshots"); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("cache: close: %w", err)
	}
	return nil
}

// timestampFormats lists the formats SQLite drivers may produce for
// CURRENT_TIMESTAMP. modernc.org/sqlite typically returns RFC 3339, while
// canonical SQLite returns the space-separated DateTime format.
var timestampFormats = []string{
	time.RFC3339,
	time.DateTime,
}

// parseTimestamp attempts to parse a SQLite timestamp string using known formats.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
