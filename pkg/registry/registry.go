// Package registry manages named replay databases and their admission
// parameters.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vladfi1/SlippiDump/pkg/replay"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

// Registry provides thread-safe access to per-database admission
// parameters backed by the metadata store.
//
// Params are read through a small in-memory cache: the first lookup
// for a database loads (or lazily creates) its params in the store,
// and later lookups are served from memory. Updates write through to
// the store and refresh the cache.
//
// Example usage:
//
//	reg := registry.New(metaStore)
//	params, _ := reg.GetParams(ctx, "ranked")
//	limits, _ := reg.Limits(ctx, "ranked")
type Registry struct {
	mu    sync.RWMutex
	store metadata.Store
	cache map[string]*replay.Params
}

// New creates a registry backed by the given metadata store.
func New(store metadata.Store) *Registry {
	return &Registry{
		store: store,
		cache: make(map[string]*replay.Params),
	}
}

// ErrInvalidName reports a database name that cannot serve as a
// storage namespace. Callers distinguish it from backend failures:
// it is a request problem, not a store problem.
var ErrInvalidName = errors.New("invalid database name")

// ValidateDatabaseName checks that a database name is usable as a
// storage namespace. Colons are reserved as the metadata key
// separator, and slashes would collide with blob key paths.
func ValidateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("database name cannot be empty: %w", ErrInvalidName)
	}
	if strings.ContainsAny(name, ":/\\") {
		return fmt.Errorf("database name %q contains a reserved character: %w", name, ErrInvalidName)
	}
	return nil
}

// GetParams returns the admission parameters for a database, creating
// default params in the store on first use. Params loaded from the
// store have any missing fields backfilled with defaults, so params
// written before a field existed stay valid.
func (r *Registry) GetParams(ctx context.Context, database string) (*replay.Params, error) {
	if err := ValidateDatabaseName(database); err != nil {
		return nil, err
	}

	r.mu.RLock()
	if params, ok := r.cache[database]; ok {
		r.mu.RUnlock()
		return params, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock in case another goroutine loaded
	// the same database while we waited.
	if params, ok := r.cache[database]; ok {
		return params, nil
	}

	params, err := r.store.GetParams(ctx, database)
	if err != nil {
		if !errors.Is(err, metadata.ErrParamsNotFound) {
			return nil, fmt.Errorf("failed to load params for %q: %w", database, err)
		}
		defaults := replay.DefaultParams(database)
		params = &defaults
		if err := r.store.PutParams(ctx, params); err != nil {
			return nil, fmt.Errorf("failed to create params for %q: %w", database, err)
		}
	} else {
		params.Backfill()
	}

	r.cache[database] = params
	return params, nil
}

// PutParams writes a database's admission parameters to the store and
// refreshes the cache.
func (r *Registry) PutParams(ctx context.Context, params *replay.Params) error {
	if err := ValidateDatabaseName(params.Name); err != nil {
		return err
	}

	params.Backfill()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.PutParams(ctx, params); err != nil {
		return fmt.Errorf("failed to write params for %q: %w", params.Name, err)
	}

	r.cache[params.Name] = params
	return nil
}

// Forget drops a database's cached params, forcing the next lookup to
// reload from the store. Used after an external params edit.
func (r *Registry) Forget(database string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, database)
}

// ListDatabases returns the names of all databases known to the store.
func (r *Registry) ListDatabases(ctx context.Context) ([]string, error) {
	return r.store.ListDatabases(ctx)
}
