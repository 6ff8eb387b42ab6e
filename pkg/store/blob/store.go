// Package blob defines the blob store interface consumed by the
// ingestion pipeline.
//
// The blob store is durable key→bytes storage. It manages only payload
// bytes; which keys exist and what they mean is the metadata store's
// business. The two stores are coordinated by the ingestion engine
// (blob written first, metadata second) and reconciled by the garbage
// collector (pkg/gc), which compares blob keys against metadata keys.
//
// Key Namespacing:
// Keys are opaque strings to every implementation. The engine derives
// them from the database name and the content key:
//   - "{database}.{contentKey}" for compressed single-item pipelines
//   - "{database}/raw/{contentKey}" for raw container uploads
//   - "{database}/slp/{contentKey}" for members expanded from raw uploads
//
// ListKeys with a database's prefixes is how purge and garbage
// collection enumerate a database's objects.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple
// goroutines. Concurrent writes to the same key are last-write-wins;
// the engine's dedup check makes same-key races rare but does not
// exclude them, and either winning write stores identical bytes.
package blob

import (
	"context"
	"io"
)

// Store provides durable key-addressed byte storage.
type Store interface {
	// Put stores the complete payload under key, replacing any
	// existing object. Intended for payloads already held in memory
	// (compressed single replays are at most a few MB).
	Put(ctx context.Context, key string, data []byte) error

	// OpenWriter returns a writer for streaming a payload under key.
	// The object becomes visible when Close returns nil; an aborted
	// or failed writer must not leave a readable object. Used for
	// large raw container uploads that never sit in memory whole.
	OpenWriter(ctx context.Context, key string) (io.WriteCloser, error)

	// Open returns a reader for the object at key. The caller closes
	// it. Returns ErrNotFound (wrapped) if the object does not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Size returns the stored byte count for key, without reading the
	// payload. Returns ErrNotFound (wrapped) if the object does not
	// exist.
	Size(ctx context.Context, key string) (int64, error)

	// Exists reports whether an object is stored at key. A missing
	// object is (false, nil), not an error.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object at key. Idempotent: deleting a
	// missing object returns nil.
	Delete(ctx context.Context, key string) error

	// DeleteBatch removes multiple objects, best-effort. Per-key
	// failures are reported in the returned map; the error return is
	// reserved for context cancellation and whole-batch failures.
	// Missing keys count as successful deletions.
	DeleteBatch(ctx context.Context, keys []string) (failures map[string]error, err error)

	// ListKeys returns every stored key beginning with prefix. An
	// empty prefix lists the whole store. Order is unspecified.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
