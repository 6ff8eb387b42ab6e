package fs

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/vladfi1/SlippiDump/pkg/store/blob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestPutOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Put(ctx, "ranked.abc123", []byte("replay bytes")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := store.Open(ctx, "ranked.abc123")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "replay bytes" {
		t.Errorf("Expected 'replay bytes', got %q", got)
	}
}

func TestPut_NestedKeyCreatesDirectories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Put(ctx, "ranked/slp/deadbeef", []byte("member")); err != nil {
		t.Fatalf("Put with nested key failed: %v", err)
	}

	size, err := store.Size(ctx, "ranked/slp/deadbeef")
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != int64(len("member")) {
		t.Errorf("Expected size %d, got %d", len("member"), size)
	}
}

func TestValidateKey_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"", "/absolute", "../escape", "a/../../b"} {
		err := store.Put(ctx, key, []byte("x"))
		if !errors.Is(err, blob.ErrInvalidKey) {
			t.Errorf("Expected ErrInvalidKey for key %q, got: %v", key, err)
		}
	}
}

func TestOpen_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "missing.key")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Put(ctx, "db.x", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "db.x"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "db.x"); err != nil {
		t.Errorf("Second delete failed: %v", err)
	}

	exists, err := store.Exists(ctx, "db.x")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected blob gone after delete")
	}
}

func TestListKeys_PrefixAndOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"ranked.b", "ranked.a", "ranked/raw/c.zip", "unranked.d"} {
		if err := store.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := store.ListKeys(ctx, "ranked")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}

	expected := []string{"ranked.a", "ranked.b", "ranked/raw/c.zip"}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("Expected %v, got %v", expected, keys)
	}
}

func TestOpenWriter_CommitsAtomically(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	w, err := store.OpenWriter(ctx, "db.streamed")
	if err != nil {
		t.Fatalf("OpenWriter failed: %v", err)
	}
	if _, err := w.Write([]byte("streamed payload")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Blob is invisible until Close renames the temp file into place.
	exists, err := store.Exists(ctx, "db.streamed")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
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
	if string(got) != "streamed payload" {
		t.Errorf("Expected 'streamed payload', got %q", got)
	}

	// Temp files never show up in listings.
	keys, err := store.ListKeys(ctx, "")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"db.streamed"}) {
		t.Errorf("Expected only committed key, got %v", keys)
	}
}
