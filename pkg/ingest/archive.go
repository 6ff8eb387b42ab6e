package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vladfi1/SlippiDump/internal/logger"
	"github.com/vladfi1/SlippiDump/pkg/archive"
	"github.com/vladfi1/SlippiDump/pkg/registry"
	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// Report summarizes the outcome of expanding one archive: every member
// either lands in Admitted or in Rejections, and a rejection of one
// member never stops the rest.
type Report struct {
	Admitted   []replay.Record
	Rejections []*replay.RejectionError
}

// IngestArchive expands a zip upload and admits each replay member
// through the standard pipeline.
//
// The member count is gated against the database's remaining file
// budget before any member is admitted, so an oversized archive is
// refused whole with zero partial admissions.
func (e *Engine) IngestArchive(ctx context.Context, database string, r io.ReaderAt, size int64) (*Report, error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveDuration(database, "ingest_archive", time.Since(start))
	}()

	ar, err := archive.OpenZip(r, size)
	if err != nil {
		if errors.Is(err, archive.ErrCorruptArchive) {
			return nil, e.reject(database, &replay.RejectionError{
				Reason:  replay.CorruptArchive,
				Message: "could not parse archive",
				Err:     err,
			})
		}
		return nil, err
	}

	report, err := e.expand(ctx, database, ar, "")
	if err != nil {
		return nil, err
	}

	logger.Info("expanded archive into %s: %d admitted, %d rejected",
		database, len(report.Admitted), len(report.Rejections))
	return report, nil
}

// expand runs the count gate and per-member admission for an opened
// archive. rawKey back-references the stored container when expanding
// a previously uploaded raw archive.
func (e *Engine) expand(ctx context.Context, database string, ar *archive.Archive, rawKey string) (*Report, error) {
	limits, err := e.registry.Limits(ctx, database)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidName) {
			return nil, err
		}
		return nil, e.storeFailure(database, "", err)
	}

	if max := limits.Params.MaxFiles; max > 0 && int64(ar.Len()) > max-limits.CurrentFiles {
		return nil, e.reject(database, &replay.RejectionError{
			Reason: replay.QuotaExceeded,
			Message: fmt.Sprintf("archive holds %d replays but only %d slots remain",
				ar.Len(), limits.RemainingFiles()),
		})
	}

	e.metrics.RecordArchiveExpanded(database, ar.Len())

	report := &Report{}
	for _, entry := range ar.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := readEntry(&entry)
		if err != nil {
			report.Rejections = append(report.Rejections, &replay.RejectionError{
				Reason:  replay.CorruptArchive,
				Name:    entry.Name,
				Message: "could not inflate archive member",
				Err:     err,
			})
			continue
		}

		rec, err := e.admit(ctx, database, entry.Name, bytes.NewReader(data), &memberPipeline, rawKey)
		if err != nil {
			rej, ok := replay.AsRejection(err)
			if !ok {
				return nil, err
			}
			report.Rejections = append(report.Rejections, rej)
			continue
		}
		report.Admitted = append(report.Admitted, *rec)
	}

	return report, nil
}

func readEntry(entry *archive.Entry) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
