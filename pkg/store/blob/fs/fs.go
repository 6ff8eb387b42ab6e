// Package fs implements the blob store on the local filesystem.
//
// Blob keys map directly to file paths under the base directory, so
// the on-disk layout mirrors the engine's key namespacing the same way
// the S3 bucket does ("{db}.{key}" is a file, "{db}/raw/{key}" a
// nested one). Writes go through a temp file and rename so a partially
// written blob is never visible.
//
// Intended for development and single-node deployments; production
// setups use the S3 store.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vladfi1/SlippiDump/pkg/store/blob"
)

const tempDirName = ".tmp"

// Store implements blob.Store using a local directory.
type Store struct {
	basePath string
}

// New creates a filesystem blob store rooted at basePath, creating the
// directory (and its temp subdirectory) if absent.
func New(ctx context.Context, basePath string) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(basePath, tempDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &Store{basePath: basePath}, nil
}

// validateKey rejects keys that would escape the base directory.
// Blob keys come from the engine (database name + hex digest), but the
// database name originates in requests, so traversal is checked here
// rather than trusted away.
func validateKey(key string) error {
	if key == "" {
		return blob.ErrInvalidKey
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\x00") {
		return fmt.Errorf("key %q: %w", key, blob.ErrInvalidKey)
	}
	return nil
}

// filePath returns the on-disk path for a blob key.
func (s *Store) filePath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Put stores the payload atomically: write to a temp file, fsync-free
// rename into place.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	w, err := s.OpenWriter(ctx, key)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// OpenWriter returns a writer that commits the blob on Close.
func (s *Store) OpenWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.basePath, tempDirName), "put-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &fileWriter{
		store: s,
		key:   key,
		tmp:   tmp,
	}, nil
}

// fileWriter writes into a temp file and renames it into place on
// Close. A failed write removes the temp file and leaves no object.
type fileWriter struct {
	store *Store
	key   string
	tmp   *os.File
	err   error
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.tmp.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}

func (w *fileWriter) Close() error {
	tmpPath := w.tmp.Name()
	closeErr := w.tmp.Close()

	if w.err != nil {
		_ = os.Remove(tmpPath)
		return w.err
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	target := w.store.filePath(w.key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to commit blob %s: %w", w.key, err)
	}

	return nil
}

// Open returns a reader for the blob at key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	f, err := os.Open(s.filePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}

	return f, nil
}

// Size returns the stored byte count for key.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateKey(key); err != nil {
		return 0, err
	}

	info, err := os.Stat(s.filePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to stat blob %s: %w", key, err)
	}

	return info.Size(), nil
}

// Exists reports whether a blob is stored at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Size(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the blob. Idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	err := os.Remove(s.filePath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}

	return nil
}

// DeleteBatch removes blobs one by one, collecting per-key failures.
func (s *Store) DeleteBatch(ctx context.Context, keys []string) (map[string]error, error) {
	failures := make(map[string]error)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		if err := s.Delete(ctx, key); err != nil {
			failures[key] = err
		}
	}

	return failures, nil
}

// ListKeys walks the base directory and returns every blob key with
// the given prefix. Keys are reported slash-separated regardless of
// the host path separator.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			// The temp directory holds uncommitted writes, not blobs.
			if d.Name() == tempDirName {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}
