// Package gc reclaims orphaned blobs.
//
// The two-phase write persists a replay's blob before its metadata
// record, so a crash or a failed record insert leaves a blob no record
// points at. The collector periodically rebuilds the referenced-key
// set from the metadata store, diffs it against the blob store's
// listing, and batch-deletes the difference.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/vladfi1/SlippiDump/internal/logger"
	"github.com/vladfi1/SlippiDump/pkg/store/blob"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

// Collector performs periodic orphan-blob collection.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	meta   metadata.Store
	blobs  blob.Store
	config Config
	stopCh chan struct{}
	doneCh chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether garbage collection is active.
	Enabled bool

	// Interval is how often to run garbage collection (default: 24h).
	Interval time.Duration

	// BatchSize is how many orphaned blobs to delete per batch
	// (default: 1000, the S3 DeleteObjects ceiling).
	BatchSize int

	// DryRun logs what would be deleted without deleting. Useful for
	// validating a deployment before enabling sweeps.
	DryRun bool
}

// NewCollector creates a garbage collector over the given stores. Call
// Start to begin background collection.
func NewCollector(meta metadata.Store, blobs blob.Store, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 1000
	}

	return &Collector{
		meta:   meta,
		blobs:  blobs,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background garbage collection. Safe to call when
// collection is disabled (does nothing).
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	logger.Info("Starting garbage collector: interval=%s batch_size=%d dry_run=%v",
		c.config.Interval, c.config.BatchSize, c.config.DryRun)

	go c.worker()
}

// Stop stops the garbage collector and waits for the worker to finish
// any in-progress collection, or until ctx expires.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	logger.Info("Stopping garbage collector...")
	close(c.stopCh)

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate collection run and blocks until it
// completes or ctx is cancelled. Useful for admin triggers and tests.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single run:
//  1. Rebuild the referenced blob-key set from every database's records
//     (including raw containers awaiting expansion).
//  2. List all keys in the blob store.
//  3. Batch-delete keys with no referencing record.
//
// A blob written by an in-flight upload whose record insert has not
// landed yet can be swept; the daily default interval makes that window
// negligible, and the uploader sees a store failure it can retry.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	databases, err := c.meta.ListDatabases(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list databases: %w", err)
	}

	referenced := make(map[string]struct{})
	for _, database := range databases {
		records, err := c.meta.List(ctx, database)
		if err != nil {
			return stats, fmt.Errorf("failed to list records in %s: %w", database, err)
		}
		for i := range records {
			referenced[records[i].BlobKey(database)] = struct{}{}
		}
	}
	stats.ReferencedCount = uint64(len(referenced))

	existing, err := c.blobs.ListKeys(ctx, "")
	if err != nil {
		return stats, fmt.Errorf("failed to list blobs: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	var orphaned []string
	for _, key := range existing {
		if _, ok := referenced[key]; !ok {
			orphaned = append(orphaned, key)
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		stats.EndTime = time.Now()
		logger.Debug("GC: no orphaned blobs found")
		return stats, nil
	}

	logger.Info("GC: found %d orphaned blobs", stats.OrphanedCount)

	if c.config.DryRun {
		for i, key := range orphaned {
			if i >= 10 {
				logger.Info("GC: ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("GC: would delete %s", key)
		}
		stats.EndTime = time.Now()
		return stats, nil
	}

	for i := 0; i < len(orphaned); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		end := i + c.config.BatchSize
		if end > len(orphaned) {
			end = len(orphaned)
		}
		batch := orphaned[i:end]

		failures, err := c.blobs.DeleteBatch(ctx, batch)
		if err != nil {
			logger.Warn("GC: batch delete failed: %v", err)
			stats.FailedCount += uint64(len(batch))
			continue
		}

		stats.DeletedCount += uint64(len(batch) - len(failures))
		stats.FailedCount += uint64(len(failures))

		for key, ferr := range failures {
			logger.Debug("GC: failed to delete %s: %v", key, ferr)
		}
	}

	stats.EndTime = time.Now()
	logger.Info("GC: completed - deleted %d blobs, %d failed, duration=%s",
		stats.DeletedCount, stats.FailedCount, stats.Duration())

	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time
	EndTime         time.Time
	ReferencedCount uint64 // blob keys referenced by records
	ExistingCount   uint64 // blob keys present in the blob store
	OrphanedCount   uint64 // unreferenced keys found
	DeletedCount    uint64 // orphans successfully deleted
	FailedCount     uint64 // orphans that failed to delete
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
