// Package memory implements an in-memory metadata store.
//
// Used by tests and ephemeral development setups. Records and params
// are copied on read and write so callers never share memory with the
// store's internal state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vladfi1/SlippiDump/pkg/replay"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

// Store implements metadata.Store with mutex-protected maps.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]replay.Record // database → key → record
	params  map[string]replay.Params            // database name → params
}

// New creates an empty in-memory metadata store.
func New() *Store {
	return &Store{
		records: make(map[string]map[string]replay.Record),
		params:  make(map[string]replay.Params),
	}
}

func (s *Store) FindByKey(ctx context.Context, database, key string) (*replay.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[database][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", database, key, metadata.ErrRecordNotFound)
	}
	out := rec
	return &out, nil
}

func (s *Store) Insert(ctx context.Context, database string, rec *replay.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.records[database]
	if !ok {
		coll = make(map[string]replay.Record)
		s.records[database] = coll
	}
	if _, exists := coll[rec.Key]; exists {
		return fmt.Errorf("%s/%s: %w", database, rec.Key, metadata.ErrDuplicateKey)
	}
	coll[rec.Key] = *rec
	return nil
}

func (s *Store) Delete(ctx context.Context, database, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.records[database], key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Count(ctx context.Context, database string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records[database])), nil
}

func (s *Store) TotalStoredBytes(ctx context.Context, database string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, rec := range s.records[database] {
		total += rec.StoredSize
	}
	return total, nil
}

func (s *Store) List(ctx context.Context, database string) ([]replay.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]replay.Record, 0, len(s.records[database]))
	for _, rec := range s.records[database] {
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) MarkProcessed(ctx context.Context, database, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[database][key]
	if !ok {
		return fmt.Errorf("%s/%s: %w", database, key, metadata.ErrRecordNotFound)
	}
	rec.Processed = true
	s.records[database][key] = rec
	return nil
}

func (s *Store) GetParams(ctx context.Context, name string) (*replay.Params, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.params[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, metadata.ErrParamsNotFound)
	}
	out := p
	return &out, nil
}

func (s *Store) PutParams(ctx context.Context, params *replay.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.params[params.Name] = *params
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteParams(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.params, name)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.params))
	for name := range s.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Close() error {
	return nil
}
