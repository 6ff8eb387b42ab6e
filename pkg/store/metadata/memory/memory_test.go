package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vladfi1/SlippiDump/pkg/replay"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

func TestInsertFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()

	rec := &replay.Record{
		Key:          "abc123",
		Name:         "game.slp",
		Kind:         replay.KindSlp,
		HashMethod:   replay.HashSHA256,
		Compression:  replay.CompressionZlib,
		OriginalSize: 100,
		StoredSize:   60,
	}
	if err := store.Insert(ctx, "ranked", rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.FindByKey(ctx, "ranked", "abc123")
	if err != nil {
		t.Fatalf("FindByKey failed: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("Expected %+v, got %+v", rec, got)
	}
}

func TestInsert_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := New()

	rec := &replay.Record{Key: "abc", Kind: replay.KindSlp}
	if err := store.Insert(ctx, "ranked", rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.Insert(ctx, "ranked", rec)
	if !errors.Is(err, metadata.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got: %v", err)
	}

	// Same key in a different database is fine.
	if err := store.Insert(ctx, "unranked", rec); err != nil {
		t.Errorf("Insert into separate database failed: %v", err)
	}
}

func TestFindByKey_NotFound(t *testing.T) {
	store := New()

	_, err := store.FindByKey(context.Background(), "ranked", "missing")
	if !errors.Is(err, metadata.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got: %v", err)
	}
}

func TestCountAndTotalStoredBytes(t *testing.T) {
	ctx := context.Background()
	store := New()

	for i, size := range []int64{100, 200, 300} {
		rec := &replay.Record{Key: string(rune('a' + i)), StoredSize: size}
		if err := store.Insert(ctx, "ranked", rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	count, err := store.Count(ctx, "ranked")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}

	total, err := store.TotalStoredBytes(ctx, "ranked")
	if err != nil {
		t.Fatalf("TotalStoredBytes failed: %v", err)
	}
	if total != 600 {
		t.Errorf("Expected total 600, got %d", total)
	}

	// Empty database reads as zero, not an error.
	count, err = store.Count(ctx, "empty")
	if err != nil || count != 0 {
		t.Errorf("Expected zero count for empty database, got %d, %v", count, err)
	}
}

func TestMarkProcessed(t *testing.T) {
	ctx := context.Background()
	store := New()

	rec := &replay.Record{Key: "raw.zip", Kind: replay.KindZip}
	if err := store.Insert(ctx, "ranked", rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.MarkProcessed(ctx, "ranked", "raw.zip"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	got, err := store.FindByKey(ctx, "ranked", "raw.zip")
	if err != nil {
		t.Fatalf("FindByKey failed: %v", err)
	}
	if !got.Processed {
		t.Error("Expected record marked processed")
	}

	err = store.MarkProcessed(ctx, "ranked", "missing")
	if !errors.Is(err, metadata.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got: %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := New()

	rec := &replay.Record{Key: "abc"}
	if err := store.Insert(ctx, "ranked", rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Delete(ctx, "ranked", "abc"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "ranked", "abc"); err != nil {
		t.Errorf("Second delete failed: %v", err)
	}
}

func TestParamsLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.GetParams(ctx, "ranked")
	if !errors.Is(err, metadata.ErrParamsNotFound) {
		t.Fatalf("Expected ErrParamsNotFound, got: %v", err)
	}

	params := replay.DefaultParams("ranked")
	if err := store.PutParams(ctx, &params); err != nil {
		t.Fatalf("PutParams failed: %v", err)
	}

	got, err := store.GetParams(ctx, "ranked")
	if err != nil {
		t.Fatalf("GetParams failed: %v", err)
	}
	if !reflect.DeepEqual(*got, params) {
		t.Errorf("Expected %+v, got %+v", params, *got)
	}

	if err := store.DeleteParams(ctx, "ranked"); err != nil {
		t.Fatalf("DeleteParams failed: %v", err)
	}
	_, err = store.GetParams(ctx, "ranked")
	if !errors.Is(err, metadata.ErrParamsNotFound) {
		t.Errorf("Expected ErrParamsNotFound after delete, got: %v", err)
	}
}

func TestListDatabases_Sorted(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		params := replay.DefaultParams(name)
		if err := store.PutParams(ctx, &params); err != nil {
			t.Fatalf("PutParams failed: %v", err)
		}
	}

	names, err := store.ListDatabases(ctx)
	if err != nil {
		t.Fatalf("ListDatabases failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("Expected sorted names, got %v", names)
	}
}
