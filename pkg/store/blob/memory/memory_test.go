package memory

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/vladfi1/SlippiDump/pkg/store/blob"
)

func TestPutOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.Put(ctx, "db.abc", []byte("payload")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := store.Open(ctx, "db.abc")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Expected 'payload', got %q", got)
	}
}

func TestOpen_NotFound(t *testing.T) {
	store := New()

	_, err := store.Open(context.Background(), "missing")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestPut_EmptyKey(t *testing.T) {
	store := New()

	err := store.Put(context.Background(), "", []byte("data"))
	if !errors.Is(err, blob.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got: %v", err)
	}
}

func TestSizeAndExists(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.Put(ctx, "db.key", []byte("12345")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	size, err := store.Size(ctx, "db.key")
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 5 {
		t.Errorf("Expected size 5, got %d", size)
	}

	exists, err := store.Exists(ctx, "db.key")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Expected blob to exist")
	}

	exists, err = store.Exists(ctx, "db.other")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected blob to not exist")
	}
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.Put(ctx, "db.key", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "db.key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Deleting again must not error.
	if err := store.Delete(ctx, "db.key"); err != nil {
		t.Errorf("Second delete failed: %v", err)
	}
}

func TestDeleteBatch(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, key := range []string{"a", "b", "c"} {
		if err := store.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	failures, err := store.DeleteBatch(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("DeleteBatch failed: %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("Expected no failures, got %v", failures)
	}

	keys, err := store.ListKeys(ctx, "")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"c"}) {
		t.Errorf("Expected only 'c' remaining, got %v", keys)
	}
}

func TestListKeys_PrefixFilter(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, key := range []string{"ranked.a", "ranked/slp/b", "unranked.c"} {
		if err := store.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := store.ListKeys(ctx, "ranked")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	expected := []string{"ranked.a", "ranked/slp/b"}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("Expected %v, got %v", expected, keys)
	}
}

func TestOpenWriter_CommitsOnClose(t *testing.T) {
	ctx := context.Background()
	store := New()

	w, err := store.OpenWriter(ctx, "db.streamed")
	if err != nil {
		t.Fatalf("OpenWriter failed: %v", err)
	}
	if _, err := w.Write([]byte("part1 ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := w.Write([]byte("part2")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Not visible until Close commits.
	exists, _ := store.Exists(ctx, "db.streamed")
	if exists {
		t.Error("Blob visible before writer Close")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rc, err := store.Open(ctx, "db.streamed")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "part1 part2" {
		t.Errorf("Expected 'part1 part2', got %q", got)
	}
}
