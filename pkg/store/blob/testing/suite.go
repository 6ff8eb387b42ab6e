// Package testing provides a reusable conformance suite for blob
// Store implementations. It tests the interface contract, not
// implementation details, so any backend (memory, filesystem, S3) can
// run the same checks.
package testing

import (
	"context"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladfi1/SlippiDump/pkg/store/blob"
)

// StoreTestSuite is a conformance test suite for blob.Store
// implementations.
type StoreTestSuite struct {
	// NewStore creates a fresh empty store for each test. This ensures
	// test isolation.
	NewStore func(t *testing.T) blob.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("PutOpen", suite.testPutOpen)
	test.Run("OpenWriter", suite.testOpenWriter)
	test.Run("Size", suite.testSize)
	test.Run("Exists", suite.testExists)
	test.Run("Delete", suite.testDelete)
	test.Run("DeleteBatch", suite.testDeleteBatch)
	test.Run("ListKeys", suite.testListKeys)
	test.Run("Overwrite", suite.testOverwrite)
}

func (suite *StoreTestSuite) testPutOpen(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()
	payload := []byte("blob payload")

	require.NoError(t, store.Put(ctx, "ranked.abc", payload))

	rc, err := store.Open(ctx, "ranked.abc")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func (suite *StoreTestSuite) testOpenWriter(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	w, err := store.OpenWriter(ctx, "ranked/raw/upload.zip")
	require.NoError(t, err)

	_, err = w.Write([]byte("first "))
	require.NoError(t, err)
	_, err = w.Write([]byte("second"))
	require.NoError(t, err)

	// Not visible until Close.
	exists, err := store.Exists(ctx, "ranked/raw/upload.zip")
	require.NoError(t, err)
	assert.False(t, exists, "object visible before writer closed")

	require.NoError(t, w.Close())

	rc, err := store.Open(ctx, "ranked/raw/upload.zip")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("first second"), got)
}

func (suite *StoreTestSuite) testSize(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ranked.abc", []byte("12345")))

	size, err := store.Size(ctx, "ranked.abc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = store.Size(ctx, "ranked.missing")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "ranked.abc")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, "ranked.abc", []byte("x")))

	exists, err = store.Exists(ctx, "ranked.abc")
	require.NoError(t, err)
	assert.True(t, exists)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ranked.abc", []byte("x")))
	require.NoError(t, store.Delete(ctx, "ranked.abc"))

	exists, err := store.Exists(ctx, "ranked.abc")
	require.NoError(t, err)
	assert.False(t, exists)

	// Idempotent.
	assert.NoError(t, store.Delete(ctx, "ranked.abc"))

	_, err = store.Open(ctx, "ranked.abc")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (suite *StoreTestSuite) testDeleteBatch(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ranked.a", []byte("a")))
	require.NoError(t, store.Put(ctx, "ranked.b", []byte("b")))

	// Missing keys count as successes.
	failures, err := store.DeleteBatch(ctx, []string{"ranked.a", "ranked.b", "ranked.missing"})
	require.NoError(t, err)
	assert.Empty(t, failures)

	for _, key := range []string{"ranked.a", "ranked.b"} {
		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, "expected %s deleted", key)
	}
}

func (suite *StoreTestSuite) testListKeys(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ranked.a", []byte("a")))
	require.NoError(t, store.Put(ctx, "ranked/slp/b", []byte("b")))
	require.NoError(t, store.Put(ctx, "casual.c", []byte("c")))

	keys, err := store.ListKeys(ctx, "")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"casual.c", "ranked.a", "ranked/slp/b"}, keys)

	keys, err = store.ListKeys(ctx, "ranked/")
	require.NoError(t, err)
	assert.Equal(t, []string{"ranked/slp/b"}, keys)

	keys, err = store.ListKeys(ctx, "nosuch")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ranked.abc", []byte("old")))
	require.NoError(t, store.Put(ctx, "ranked.abc", []byte("newer")))

	size, err := store.Size(ctx, "ranked.abc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}
