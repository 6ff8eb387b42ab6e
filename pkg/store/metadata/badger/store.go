// Package badger implements metadata.Store using BadgerDB for
// persistence.
//
// This is the production metadata backend: records and params survive
// restarts, and inserts run inside Badger transactions, which gives
// first-write-wins semantics on duplicate content keys (narrowing,
// though not closing, the concurrent duplicate-upload race).
//
// Thread Safety:
// BadgerDB transactions provide isolation; the store adds no locking
// of its own. Aggregate queries (Count, TotalStoredBytes, List) scan a
// database's key range inside a read transaction and therefore see a
// consistent snapshot.
package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Store implements metadata.Store backed by a BadgerDB database.
type Store struct {
	db *badger.DB
}

// Config contains configuration for the Badger metadata store.
type Config struct {
	// Path is the on-disk database directory.
	Path string

	// InMemory runs Badger without persistence. Test-only.
	InMemory bool
}

// New opens (or creates) the BadgerDB database at the configured path.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger metadata store: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}
	return nil
}
