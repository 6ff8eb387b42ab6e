package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/vladfi1/SlippiDump/pkg/replay"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

func (s *Store) GetParams(ctx context.Context, name string) (*replay.Params, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var params replay.Params
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(paramsKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &params)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", name, metadata.ErrParamsNotFound)
		}
		return nil, fmt.Errorf("failed to read params for %s: %w", name, err)
	}

	return &params, nil
}

func (s *Store) PutParams(ctx context.Context, params *replay.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(paramsKey(params.Name), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write params for %s: %w", params.Name, err)
	}

	return nil
}

func (s *Store) DeleteParams(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(paramsKey(name))
	})
	if err != nil {
		return fmt.Errorf("failed to delete params for %s: %w", name, err)
	}

	return nil
}

// ListDatabases returns the names of all databases with stored params,
// sorted lexicographically.
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(paramsPrefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			names = append(names, string(key[len(paramsPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	sort.Strings(names)
	return names, nil
}
