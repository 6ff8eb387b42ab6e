// Package testing provides a reusable conformance suite for metadata
// Store implementations. It tests the interface contract, not
// implementation details, so any backend (memory, badger) can run the
// same checks.
package testing

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladfi1/SlippiDump/pkg/replay"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

// StoreTestSuite is a conformance test suite for metadata.Store
// implementations.
type StoreTestSuite struct {
	// NewStore creates a fresh empty store for each test. The suite
	// closes it when the test finishes.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Records", suite.RunRecordTests)
	test.Run("Aggregates", suite.RunAggregateTests)
	test.Run("Params", suite.RunParamsTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T) metadata.Store {
	store := suite.NewStore(t)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return store
}

func testRecord(key string, storedSize int64) *replay.Record {
	return &replay.Record{
		Key:          key,
		Name:         key + ".slp",
		Kind:         replay.KindSlp,
		HashMethod:   replay.HashSHA256,
		Compression:  replay.CompressionZlib,
		OriginalSize: storedSize * 2,
		StoredSize:   storedSize,
		UploadedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

// RunRecordTests covers insert, lookup, delete and the processed flag.
func (suite *StoreTestSuite) RunRecordTests(test *testing.T) {
	test.Run("InsertAndFind", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		rec := testRecord("abc123", 100)
		require.NoError(t, store.Insert(ctx, "ranked", rec))

		found, err := store.FindByKey(ctx, "ranked", "abc123")
		require.NoError(t, err)
		assert.Equal(t, rec.Key, found.Key)
		assert.Equal(t, rec.Name, found.Name)
		assert.Equal(t, rec.StoredSize, found.StoredSize)
	})

	test.Run("FindMissing", func(t *testing.T) {
		store := suite.newStore(t)

		_, err := store.FindByKey(context.Background(), "ranked", "nosuch")
		assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
	})

	test.Run("InsertDuplicate", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Insert(ctx, "ranked", testRecord("abc123", 100)))

		err := store.Insert(ctx, "ranked", testRecord("abc123", 999))
		assert.ErrorIs(t, err, metadata.ErrDuplicateKey)

		// Existing record untouched.
		found, err := store.FindByKey(ctx, "ranked", "abc123")
		require.NoError(t, err)
		assert.Equal(t, int64(100), found.StoredSize)
	})

	test.Run("DatabasesIsolated", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Insert(ctx, "ranked", testRecord("abc123", 100)))

		_, err := store.FindByKey(ctx, "casual", "abc123")
		assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
	})

	test.Run("ColonKeysIsolated", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		// Name-keyed raw uploads can carry colons in the content key.
		rec := testRecord("2024:weekly.zip", 100)
		rec.Kind = replay.KindZip
		require.NoError(t, store.Insert(ctx, "ran", rec))

		found, err := store.FindByKey(ctx, "ran", "2024:weekly.zip")
		require.NoError(t, err)
		assert.Equal(t, "2024:weekly.zip", found.Key)

		count, err := store.Count(ctx, "ran")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// A colon in the content key must not make the record visible
		// from another (colon-free) database name.
		_, err = store.FindByKey(ctx, "ra", "n:2024:weekly.zip")
		assert.ErrorIs(t, err, metadata.ErrRecordNotFound)

		count, err = store.Count(ctx, "ra")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	test.Run("Delete", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Insert(ctx, "ranked", testRecord("abc123", 100)))
		require.NoError(t, store.Delete(ctx, "ranked", "abc123"))

		_, err := store.FindByKey(ctx, "ranked", "abc123")
		assert.ErrorIs(t, err, metadata.ErrRecordNotFound)

		// Idempotent.
		assert.NoError(t, store.Delete(ctx, "ranked", "abc123"))
	})

	test.Run("MarkProcessed", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		rec := testRecord("weekly.zip", 100)
		rec.Kind = replay.KindZip
		require.NoError(t, store.Insert(ctx, "ranked", rec))

		require.NoError(t, store.MarkProcessed(ctx, "ranked", "weekly.zip"))

		found, err := store.FindByKey(ctx, "ranked", "weekly.zip")
		require.NoError(t, err)
		assert.True(t, found.Processed)

		err = store.MarkProcessed(ctx, "ranked", "nosuch")
		assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
	})
}

// RunAggregateTests covers the quota-facing scans.
func (suite *StoreTestSuite) RunAggregateTests(test *testing.T) {
	test.Run("CountAndTotal", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Insert(ctx, "ranked", testRecord("a", 100)))
		require.NoError(t, store.Insert(ctx, "ranked", testRecord("b", 250)))
		require.NoError(t, store.Insert(ctx, "casual", testRecord("c", 999)))

		count, err := store.Count(ctx, "ranked")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		total, err := store.TotalStoredBytes(ctx, "ranked")
		require.NoError(t, err)
		assert.Equal(t, int64(350), total)
	})

	test.Run("EmptyDatabase", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		count, err := store.Count(ctx, "ranked")
		require.NoError(t, err)
		assert.Zero(t, count)

		total, err := store.TotalStoredBytes(ctx, "ranked")
		require.NoError(t, err)
		assert.Zero(t, total)

		records, err := store.List(ctx, "ranked")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	test.Run("List", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Insert(ctx, "ranked", testRecord("a", 1)))
		require.NoError(t, store.Insert(ctx, "ranked", testRecord("b", 2)))

		records, err := store.List(ctx, "ranked")
		require.NoError(t, err)
		require.Len(t, records, 2)

		keys := []string{records[0].Key, records[1].Key}
		sort.Strings(keys)
		assert.Equal(t, []string{"a", "b"}, keys)
	})
}

// RunParamsTests covers the params collection and database listing.
func (suite *StoreTestSuite) RunParamsTests(test *testing.T) {
	test.Run("PutGet", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		params := replay.DefaultParams("ranked")
		require.NoError(t, store.PutParams(ctx, &params))

		got, err := store.GetParams(ctx, "ranked")
		require.NoError(t, err)
		assert.Equal(t, params, *got)
	})

	test.Run("GetMissing", func(t *testing.T) {
		store := suite.newStore(t)

		_, err := store.GetParams(context.Background(), "nosuch")
		assert.ErrorIs(t, err, metadata.ErrParamsNotFound)
	})

	test.Run("PutReplaces", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		params := replay.DefaultParams("ranked")
		require.NoError(t, store.PutParams(ctx, &params))

		params.MaxFiles = 7
		require.NoError(t, store.PutParams(ctx, &params))

		got, err := store.GetParams(ctx, "ranked")
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.MaxFiles)
	})

	test.Run("DeleteParams", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		params := replay.DefaultParams("ranked")
		require.NoError(t, store.PutParams(ctx, &params))
		require.NoError(t, store.DeleteParams(ctx, "ranked"))

		_, err := store.GetParams(ctx, "ranked")
		assert.ErrorIs(t, err, metadata.ErrParamsNotFound)

		// Idempotent.
		assert.NoError(t, store.DeleteParams(ctx, "ranked"))
	})

	test.Run("ListDatabases", func(t *testing.T) {
		store := suite.newStore(t)
		ctx := context.Background()

		names, err := store.ListDatabases(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		for _, name := range []string{"ranked", "casual", "netplay"} {
			params := replay.DefaultParams(name)
			require.NoError(t, store.PutParams(ctx, &params))
		}

		names, err = store.ListDatabases(ctx)
		require.NoError(t, err)
		sort.Strings(names)
		assert.Equal(t, []string{"casual", "netplay", "ranked"}, names)
	})
}
