// Package memory implements an in-memory blob store.
//
// Used by tests and ephemeral development setups. All data is lost on
// process exit. Payloads are copied on write and read so callers can
// reuse their buffers.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/vladfi1/SlippiDump/pkg/store/blob"
)

// Store implements blob.Store with a mutex-protected map.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory blob store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return blob.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

// OpenWriter buffers writes and commits the blob on Close.
func (s *Store) OpenWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, blob.ErrInvalidKey
	}
	return &bufferWriter{store: s, ctx: ctx, key: key}, nil
}

type bufferWriter struct {
	store  *Store
	ctx    context.Context
	key    string
	buffer bytes.Buffer
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	return w.buffer.Write(p)
}

func (w *bufferWriter) Close() error {
	return w.store.Put(w.ctx, w.key, w.buffer.Bytes())
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
	}

	return io.NopCloser(bytes.NewReader(append([]byte(nil), data...))), nil
}

func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	data, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
	}

	return int64(len(data)), nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	_, ok := s.data[key]
	s.mu.RUnlock()
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, keys []string) (map[string]error, error) {
	failures := make(map[string]error)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		delete(s.data, key)
	}
	return failures, nil
}

func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
