// Record operations for the Badger metadata store. Records are stored
// as JSON (human-readable, schema evolves by field addition, matching
// the params backfill strategy).

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/vladfi1/SlippiDump/pkg/replay"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

func (s *Store) FindByKey(ctx context.Context, database, key string) (*replay.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec replay.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(database, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", database, key, metadata.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to read record %s/%s: %w", database, key, err)
	}

	return &rec, nil
}

// Insert writes the record inside a transaction that first checks for
// an existing key, so concurrent inserts of the same content key
// resolve to exactly one record.
func (s *Store) Insert(ctx context.Context, database string, rec *replay.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	storageKey := recordKey(database, rec.Key)
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(storageKey)
		if err == nil {
			return metadata.ErrDuplicateKey
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(storageKey, value)
	})
	if err != nil {
		if errors.Is(err, metadata.ErrDuplicateKey) {
			return fmt.Errorf("%s/%s: %w", database, rec.Key, metadata.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert record %s/%s: %w", database, rec.Key, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, database, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(database, key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", database, key, err)
	}

	return nil
}

func (s *Store) Count(ctx context.Context, database string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordScanPrefix(database)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count records in %s: %w", database, err)
	}

	return count, nil
}

func (s *Store) TotalStoredBytes(ctx context.Context, database string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var total int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordScanPrefix(database)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec replay.Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				total += rec.StoredSize
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sum stored bytes in %s: %w", database, err)
	}

	return total, nil
}

func (s *Store) List(ctx context.Context, database string) ([]replay.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []replay.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordScanPrefix(database)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec replay.Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records in %s: %w", database, err)
	}

	return records, nil
}

func (s *Store) MarkProcessed(ctx context.Context, database, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	storageKey := recordKey(database, key)
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(storageKey)
		if err != nil {
			return err
		}

		var rec replay.Record
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
		if err != nil {
			return err
		}

		rec.Processed = true
		value, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return txn.Set(storageKey, value)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s/%s: %w", database, key, metadata.ErrRecordNotFound)
		}
		return fmt.Errorf("failed to mark record %s/%s processed: %w", database, key, err)
	}

	return nil
}
