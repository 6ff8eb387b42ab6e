package ingest

import (
	"context"
	"fmt"

	"github.com/vladfi1/SlippiDump/internal/logger"
)

// CurrentDatabaseSize returns the sum of stored blob sizes across a
// database's records.
func (e *Engine) CurrentDatabaseSize(ctx context.Context, database string) (int64, error) {
	return e.meta.TotalStoredBytes(ctx, database)
}

// PurgeDatabase removes a database entirely: every record, its params,
// and every blob under the database's key prefixes. Removal is
// best-effort and not atomic across the two stores; records go first
// so a partial purge leaves orphan blobs for GC rather than records
// pointing at missing blobs.
func (e *Engine) PurgeDatabase(ctx context.Context, database string) error {
	records, err := e.meta.List(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to list records for purge of %q: %w", database, err)
	}

	for _, rec := range records {
		if err := e.meta.Delete(ctx, database, rec.Key); err != nil {
			return fmt.Errorf("failed to delete record %s/%s: %w", database, rec.Key, err)
		}
	}

	if err := e.meta.DeleteParams(ctx, database); err != nil {
		return fmt.Errorf("failed to delete params for %q: %w", database, err)
	}
	e.registry.Forget(database)

	removed := 0
	for _, prefix := range []string{database + ".", database + "/"} {
		keys, err := e.blobs.ListKeys(ctx, prefix)
		if err != nil {
			return fmt.Errorf("failed to list blobs under %q: %w", prefix, err)
		}
		if len(keys) == 0 {
			continue
		}

		failures, err := e.blobs.DeleteBatch(ctx, keys)
		if err != nil {
			return fmt.Errorf("failed to delete blobs under %q: %w", prefix, err)
		}
		for key, ferr := range failures {
			logger.Warn("purge of %s left blob %s behind: %v", database, key, ferr)
		}
		removed += len(keys) - len(failures)
	}

	logger.Info("purged database %s: %d records, %d blobs removed", database, len(records), removed)
	return nil
}
