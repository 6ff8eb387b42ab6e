// Package metadata defines the metadata store interface consumed by
// the ingestion pipeline.
//
// The metadata store holds one record collection per logical database
// plus a shared params collection keyed by database name. It is the
// dedup index (point lookup by content key) and the source of quota
// state (count and stored-byte aggregates are computed by scanning a
// database's records; there is no persisted running counter).
//
// Separation of Concerns:
// The metadata store never sees payload bytes. Blobs live in the blob
// store (pkg/store/blob); a record's Key plus the engine's namespacing
// derives the blob key. The ingestion engine is the sole writer of
// records, the database registry the sole writer of params.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Atomicity is only
// guaranteed per operation; the pipeline's check-then-act sequences
// (dedup, quota) are advisory across concurrent requests by design.
package metadata

import (
	"context"

	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// Store provides record and params persistence for logical databases.
type Store interface {
	// FindByKey returns the record with the given content key, or
	// ErrRecordNotFound (wrapped) if no such record exists. This is
	// the dedup lookup.
	FindByKey(ctx context.Context, database, key string) (*replay.Record, error)

	// Insert adds a record to the database's collection. Returns
	// ErrDuplicateKey (wrapped) if a record with the same Key already
	// exists; the existing record is left untouched.
	Insert(ctx context.Context, database string, rec *replay.Record) error

	// Delete removes the record with the given key. Idempotent:
	// deleting a missing record returns nil.
	Delete(ctx context.Context, database, key string) error

	// Count returns the number of records in the database.
	Count(ctx context.Context, database string) (int64, error)

	// TotalStoredBytes returns the sum of StoredSize over all of the
	// database's records. Full scan per call; quota checks accept
	// that cost.
	TotalStoredBytes(ctx context.Context, database string) (int64, error)

	// List returns all records in the database. Order is unspecified.
	List(ctx context.Context, database string) ([]replay.Record, error)

	// MarkProcessed sets the Processed flag on a record. Used by the
	// raw-expansion pass after admitting a container's members, never
	// by the admission path itself. Returns ErrRecordNotFound
	// (wrapped) if no such record exists.
	MarkProcessed(ctx context.Context, database, key string) error

	// GetParams returns the params document for a database name, or
	// ErrParamsNotFound (wrapped) if none exists. No defaulting
	// happens here; the registry owns defaults and backfill.
	GetParams(ctx context.Context, name string) (*replay.Params, error)

	// PutParams stores a params document, replacing any existing one
	// for the same name.
	PutParams(ctx context.Context, params *replay.Params) error

	// DeleteParams removes a database's params document. Idempotent.
	DeleteParams(ctx context.Context, name string) error

	// ListDatabases returns the names of all databases that have a
	// params document. Garbage collection iterates this to bound its
	// sweep.
	ListDatabases(ctx context.Context) ([]string, error)

	// Close releases store resources. The store must not be used
	// afterwards.
	Close() error
}
