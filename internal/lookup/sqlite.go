package lookup

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reference_keys (
	keyspace TEXT NOT NULL,
	key      TEXT NOT NULL,
	PRIMARY KEY (keyspace, key)
);`

// SQLite is a reference-key set backed by a SQLite file, for reference
// data too large to hold in memory but not worth a database server.
type SQLite struct {
	db       *sql.DB
	keyspace string
}

// OpenSQLite opens (or creates) the database at path and ensures the
// key table exists. Use ":memory:" for an ephemeral set.
func OpenSQLite(ctx context.Context, path, keyspace string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite has a single writer, and an in-memory database exists per
	// connection; one connection serves both cases correctly.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create reference_keys table: %w", err)
	}
	return &SQLite{db: db, keyspace: keyspace}, nil
}

// Add inserts keys into the set. Existing keys are ignored.
func (s *SQLite) Add(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO reference_keys (keyspace, key) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, key := range keys {
		if _, err := stmt.ExecContext(ctx, s.keyspace, key); err != nil {
			return fmt.Errorf("insert key %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Exists implements quality.Lookup.
func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM reference_keys WHERE keyspace = ? AND key = ?`, s.keyspace, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query key %q: %w", key, err)
	}
	return true, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
