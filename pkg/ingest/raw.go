package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/vladfi1/SlippiDump/internal/logger"
	"github.com/vladfi1/SlippiDump/pkg/archive"
	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// containerKind maps a raw upload's extension to its stored kind.
// 7z containers are accepted for storage but cannot be expanded yet;
// only zip has an expansion path.
func containerKind(name string) (replay.Kind, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".zip":
		return replay.KindZip, true
	case ".7z":
		return replay.Kind7z, true
	default:
		return "", false
	}
}

// IngestRaw stores an archive container as-is, keyed by its declared
// filename, for later expansion via ProcessRaw. No compression is
// applied; the container is already compressed.
func (e *Engine) IngestRaw(ctx context.Context, database, name string, rs io.ReadSeeker) (*replay.Record, error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveDuration(database, "ingest_raw", time.Since(start))
	}()

	kind, ok := containerKind(name)
	if !ok {
		return nil, e.reject(database, &replay.RejectionError{
			Reason:  replay.UnsupportedKind,
			Name:    name,
			Message: "expected a .zip or .7z container",
		})
	}

	p := rawPipeline
	p.kind = kind

	rec, err := e.admit(ctx, database, name, rs, &p, "")
	if err != nil {
		return nil, err
	}

	logger.Info("stored raw container %s in %s", name, database)
	return rec, nil
}

// ProcessRaw expands a previously stored raw container: its replay
// members are admitted through the archive pipeline with a back
// reference to the container, and the container's record is marked
// processed. Processing an already processed container is allowed; the
// members dedup against their existing records.
func (e *Engine) ProcessRaw(ctx context.Context, database, rawKey string) (*Report, error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveDuration(database, "process_raw", time.Since(start))
	}()

	rec, err := e.meta.FindByKey(ctx, database, rawKey)
	if err != nil {
		return nil, e.storeFailure(database, rawKey, err)
	}
	if rec.Kind != replay.KindZip {
		return nil, e.reject(database, &replay.RejectionError{
			Reason:  replay.UnsupportedKind,
			Name:    rec.Name,
			Message: fmt.Sprintf("cannot expand container of kind %s", rec.Kind),
		})
	}

	blobKey := rec.BlobKey(database)
	rc, err := e.blobs.Open(ctx, blobKey)
	if err != nil {
		return nil, e.storeFailure(database, rec.Name, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read raw container %s: %w", blobKey, err)
	}

	ar, err := archive.OpenZip(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, e.reject(database, &replay.RejectionError{
			Reason:  replay.CorruptArchive,
			Name:    rec.Name,
			Message: "could not parse stored container",
			Err:     err,
		})
	}

	report, err := e.expand(ctx, database, ar, rawKey)
	if err != nil {
		return nil, err
	}

	if err := e.meta.MarkProcessed(ctx, database, rawKey); err != nil {
		return nil, e.storeFailure(database, rec.Name, err)
	}

	logger.Info("processed raw container %s in %s: %d admitted, %d rejected",
		rawKey, database, len(report.Admitted), len(report.Rejections))
	return report, nil
}
