package registry

import (
	"context"
	"fmt"

	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// Limits is a point-in-time view of a database's admission parameters
// alongside its current usage. Usage is derived by scanning records,
// so it may lag behind concurrent ingestion.
type Limits struct {
	Params       replay.Params
	CurrentFiles int64
	CurrentBytes int64
}

// RemainingFiles returns how many more files the database can accept,
// or -1 when the file limit is disabled.
func (l *Limits) RemainingFiles() int64 {
	if l.Params.MaxFiles <= 0 {
		return -1
	}
	remaining := l.Params.MaxFiles - l.CurrentFiles
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Limits returns the database's params together with its current file
// count and stored byte total.
func (r *Registry) Limits(ctx context.Context, database string) (*Limits, error) {
	params, err := r.GetParams(ctx, database)
	if err != nil {
		return nil, err
	}

	count, err := r.store.Count(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to count records for %q: %w", database, err)
	}

	bytes, err := r.store.TotalStoredBytes(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to sum stored bytes for %q: %w", database, err)
	}

	return &Limits{
		Params:       *params,
		CurrentFiles: count,
		CurrentBytes: bytes,
	}, nil
}
