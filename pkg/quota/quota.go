// Package quota decides whether a candidate upload fits within a
// database's configured limits.
package quota

import (
	"context"
	"fmt"

	"github.com/vladfi1/SlippiDump/pkg/registry"
)

// Controller evaluates admission against a database's limits. Usage is
// re-derived from the metadata store on every check, so there are no
// counters to drift; concurrent uploads may race past a limit by at
// most the in-flight amount, which the limits tolerate.
type Controller struct {
	registry *registry.Registry
}

// New creates a quota controller over the given registry.
func New(reg *registry.Registry) *Controller {
	return &Controller{registry: reg}
}

// WouldExceed reports whether admitting candidateBytes more stored
// bytes and candidateFiles more records would push the database past
// its total-size or file-count limit. A zero or negative limit
// disables that check.
func (c *Controller) WouldExceed(ctx context.Context, database string, candidateBytes, candidateFiles int64) (bool, error) {
	limits, err := c.registry.Limits(ctx, database)
	if err != nil {
		return false, fmt.Errorf("failed to load limits for %q: %w", database, err)
	}

	if max := limits.Params.MaxTotalSize; max > 0 && limits.CurrentBytes+candidateBytes > max {
		return true, nil
	}
	if max := limits.Params.MaxFiles; max > 0 && limits.CurrentFiles+candidateFiles > max {
		return true, nil
	}
	return false, nil
}
