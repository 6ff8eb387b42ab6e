package gc

import (
	"context"
	"testing"
	"time"

	"github.com/vladfi1/SlippiDump/pkg/replay"
	blobMemory "github.com/vladfi1/SlippiDump/pkg/store/blob/memory"
	metaMemory "github.com/vladfi1/SlippiDump/pkg/store/metadata/memory"
)

// seedRecord stores a blob and the record referencing it.
func seedRecord(t *testing.T, blobs *blobMemory.Store, meta *metaMemory.Store, database string, rec replay.Record) {
	t.Helper()
	ctx := context.Background()

	if err := blobs.Put(ctx, rec.BlobKey(database), []byte("payload")); err != nil {
		t.Fatalf("Failed to seed blob: %v", err)
	}
	if err := meta.Insert(ctx, database, &rec); err != nil {
		t.Fatalf("Failed to seed record: %v", err)
	}
}

func seedOrphan(t *testing.T, blobs *blobMemory.Store, key string) {
	t.Helper()
	if err := blobs.Put(context.Background(), key, []byte("orphan")); err != nil {
		t.Fatalf("Failed to seed orphan blob: %v", err)
	}
}

func TestCollect_SweepsOrphans(t *testing.T) {
	ctx := context.Background()
	blobs := blobMemory.New()
	meta := metaMemory.New()

	params := replay.DefaultParams("ranked")
	if err := meta.PutParams(ctx, &params); err != nil {
		t.Fatalf("PutParams failed: %v", err)
	}

	// Referenced blobs across all three key shapes.
	seedRecord(t, blobs, meta, "ranked", replay.Record{
		Key: "abc123", Kind: replay.KindSlp,
	})
	seedRecord(t, blobs, meta, "ranked", replay.Record{
		Key: "def456", Kind: replay.KindArchiveMember,
	})
	seedRecord(t, blobs, meta, "ranked", replay.Record{
		Key: "weekly.zip", Kind: replay.KindZip,
	})

	seedOrphan(t, blobs, "ranked.deadbeef")
	seedOrphan(t, blobs, "ranked/slp/cafef00d")

	collector := NewCollector(meta, blobs, Config{Enabled: true})
	stats, err := collector.RunNow(ctx)
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	if stats.ReferencedCount != 3 {
		t.Errorf("Expected 3 referenced blobs, got %d", stats.ReferencedCount)
	}
	if stats.OrphanedCount != 2 {
		t.Errorf("Expected 2 orphaned blobs, got %d", stats.OrphanedCount)
	}
	if stats.DeletedCount != 2 {
		t.Errorf("Expected 2 deleted blobs, got %d", stats.DeletedCount)
	}
	if stats.FailedCount != 0 {
		t.Errorf("Expected no failures, got %d", stats.FailedCount)
	}

	// Referenced blobs survive the sweep.
	for _, key := range []string{"ranked.abc123", "ranked/slp/def456", "ranked/raw/weekly.zip"} {
		exists, err := blobs.Exists(ctx, key)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if !exists {
			t.Errorf("Expected referenced blob %s to survive", key)
		}
	}

	// Orphans are gone.
	for _, key := range []string{"ranked.deadbeef", "ranked/slp/cafef00d"} {
		exists, err := blobs.Exists(ctx, key)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Errorf("Expected orphan %s to be swept", key)
		}
	}
}

func TestCollect_DryRunDeletesNothing(t *testing.T) {
	ctx := context.Background()
	blobs := blobMemory.New()
	meta := metaMemory.New()

	seedOrphan(t, blobs, "ranked.deadbeef")

	collector := NewCollector(meta, blobs, Config{Enabled: true, DryRun: true})
	stats, err := collector.RunNow(ctx)
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	if stats.OrphanedCount != 1 {
		t.Errorf("Expected 1 orphan reported, got %d", stats.OrphanedCount)
	}
	if stats.DeletedCount != 0 {
		t.Errorf("Expected dry run to delete nothing, got %d", stats.DeletedCount)
	}

	exists, err := blobs.Exists(ctx, "ranked.deadbeef")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Expected orphan blob to survive dry run")
	}
}

func TestCollect_EmptyStores(t *testing.T) {
	collector := NewCollector(metaMemory.New(), blobMemory.New(), Config{Enabled: true})

	stats, err := collector.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if stats.OrphanedCount != 0 || stats.DeletedCount != 0 {
		t.Errorf("Expected empty run, got %s", stats.Summary())
	}
}

func TestStartStop_Disabled(t *testing.T) {
	collector := NewCollector(metaMemory.New(), blobMemory.New(), Config{Enabled: false})
	collector.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := collector.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestStartStop_Enabled(t *testing.T) {
	collector := NewCollector(metaMemory.New(), blobMemory.New(), Config{
		Enabled:  true,
		Interval: time.Hour,
	})
	collector.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := collector.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
