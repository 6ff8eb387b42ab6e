package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/vladfi1/SlippiDump/internal/hashing"
	"github.com/vladfi1/SlippiDump/internal/logger"
	"github.com/vladfi1/SlippiDump/pkg/registry"
	"github.com/vladfi1/SlippiDump/pkg/replay"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

// replayExtension is the only file type the direct upload path admits.
const replayExtension = ".slp"

// IngestItem admits a single replay upload: extension check, size
// bounds, content key, dedup, quota, then the two-phase write. The
// returned record describes the stored replay; a *replay.RejectionError
// explains any refusal.
func (e *Engine) IngestItem(ctx context.Context, database, name string, rs io.ReadSeeker) (*replay.Record, error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveDuration(database, "ingest_item", time.Since(start))
	}()

	if !strings.HasSuffix(strings.ToLower(name), replayExtension) {
		return nil, e.reject(database, &replay.RejectionError{
			Reason:  replay.UnsupportedKind,
			Name:    name,
			Message: fmt.Sprintf("expected a %s file", replayExtension),
		})
	}

	rec, err := e.admit(ctx, database, name, rs, &slpPipeline, "")
	if err != nil {
		return nil, err
	}

	logger.Info("admitted replay %s to %s as %s", name, database, rec.Key)
	return rec, nil
}

// admit runs the shared portion of the admission pipeline for a named
// upload whose contents are behind rs. rawKey back-references the raw
// container an archive member came from, if any.
//
// Check order is fixed: size bounds, key computation, dedup, quota,
// compression, blob write, metadata insert. Quota and dedup are
// advisory under concurrency; the metadata store's duplicate-key check
// is the authoritative dedup backstop.
func (e *Engine) admit(ctx context.Context, database, name string, rs io.ReadSeeker, p *pipeline, rawKey string) (*replay.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params, err := e.registry.GetParams(ctx, database)
	if err != nil {
		// An invalid database name is the caller's mistake, not a
		// backend outage.
		if errors.Is(err, registry.ErrInvalidName) {
			return nil, err
		}
		return nil, e.storeFailure(database, name, err)
	}

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to measure upload %s: %w", name, err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind upload %s: %w", name, err)
	}

	if params.MinSizePerFile > 0 && size < params.MinSizePerFile {
		return nil, e.reject(database, &replay.RejectionError{
			Reason:  replay.TooSmall,
			Name:    name,
			Message: fmt.Sprintf("%d bytes is below the %d byte minimum", size, params.MinSizePerFile),
		})
	}
	if params.MaxSizePerFile > 0 && size > params.MaxSizePerFile {
		return nil, e.reject(database, &replay.RejectionError{
			Reason:  replay.TooLarge,
			Name:    name,
			Message: fmt.Sprintf("%d bytes exceeds the %d byte maximum", size, params.MaxSizePerFile),
		})
	}

	key, err := e.contentKey(name, rs, p)
	if err != nil {
		return nil, fmt.Errorf("failed to compute content key for %s: %w", name, err)
	}

	_, err = e.meta.FindByKey(ctx, database, key)
	if err == nil {
		return nil, e.reject(database, &replay.RejectionError{
			Reason:  replay.Duplicate,
			Name:    name,
			Message: fmt.Sprintf("content key %s already stored", key),
		})
	}
	if !errors.Is(err, metadata.ErrRecordNotFound) {
		return nil, e.storeFailure(database, name, err)
	}

	exceeded, err := e.quota.WouldExceed(ctx, database, size, 1)
	if err != nil {
		return nil, e.storeFailure(database, name, err)
	}
	if exceeded {
		return nil, e.reject(database, &replay.RejectionError{
			Reason:  replay.QuotaExceeded,
			Name:    name,
			Message: fmt.Sprintf("database %s is full", database),
		})
	}

	blobKey := p.blobKey(database, key)
	storedSize, err := e.writeBlob(ctx, blobKey, rs, p)
	if err != nil {
		return nil, e.storeFailure(database, name, err)
	}

	rec := &replay.Record{
		Key:          key,
		Name:         name,
		Kind:         p.kind,
		HashMethod:   p.keyMethod,
		Compression:  p.compression(),
		OriginalSize: size,
		StoredSize:   storedSize,
		RawKey:       rawKey,
		UploadedAt:   time.Now().UTC(),
	}

	if err := e.meta.Insert(ctx, database, rec); err != nil {
		// The blob is already durable; an orphan here is reclaimed by
		// the GC sweep rather than rolled back inline.
		if errors.Is(err, metadata.ErrDuplicateKey) {
			return nil, e.reject(database, &replay.RejectionError{
				Reason:  replay.Duplicate,
				Name:    name,
				Message: fmt.Sprintf("content key %s already stored", key),
			})
		}
		logger.Error("record insert failed after blob write %s: %v", blobKey, err)
		return nil, e.storeFailure(database, name, err)
	}

	e.metrics.RecordAdmission(database, string(rec.Kind), rec.StoredSize)
	return rec, nil
}

// contentKey derives the record key for an upload per the pipeline's
// hash method. The name method keys raw containers by their declared
// filename instead of their contents.
func (e *Engine) contentKey(name string, rs io.ReadSeeker, p *pipeline) (string, error) {
	if p.keyMethod == replay.HashName {
		return name, nil
	}
	return hashing.SumReader(rs, p.keyMethod)
}

// writeBlob stores the upload under blobKey and returns the stored
// byte count. Compressed pipelines buffer the zlib output (single
// replays are at most a few MB) and hand it to Put; uncompressed
// pipelines carry raw containers, which stream through the store's
// writer without being held in memory whole.
func (e *Engine) writeBlob(ctx context.Context, blobKey string, rs io.ReadSeeker, p *pipeline) (int64, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	if !p.compress {
		w, err := e.blobs.OpenWriter(ctx, blobKey)
		if err != nil {
			return 0, err
		}
		n, err := io.Copy(w, rs)
		if err != nil {
			w.Close()
			return 0, err
		}
		if err := w.Close(); err != nil {
			return 0, err
		}
		return n, nil
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := io.Copy(zw, rs); err != nil {
		zw.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	if err := e.blobs.Put(ctx, blobKey, buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// reject records the rejection metric and returns the error unchanged.
func (e *Engine) reject(database string, rej *replay.RejectionError) error {
	e.metrics.RecordRejection(database, string(rej.Reason))
	logger.Debug("rejected %s from %s: %s", rej.Name, database, rej.Reason)
	return rej
}

// storeFailure wraps a backing-store error in the admission taxonomy.
func (e *Engine) storeFailure(database, name string, err error) error {
	e.metrics.RecordRejection(database, string(replay.StoreUnavailable))
	return &replay.RejectionError{
		Reason:  replay.StoreUnavailable,
		Name:    name,
		Message: "backing store failed",
		Err:     err,
	}
}
