// Package ingest implements the replay admission engine: the ordered
// checks an upload passes through before its bytes reach the blob
// store and its record reaches the metadata store.
package ingest

import (
	"github.com/vladfi1/SlippiDump/pkg/quota"
	"github.com/vladfi1/SlippiDump/pkg/registry"
	"github.com/vladfi1/SlippiDump/pkg/store/blob"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
)

// Engine coordinates the admission pipeline against a blob store and a
// metadata store. Writes are two-phase: the blob is persisted first,
// then the record. A crash between the phases leaves an orphan blob
// with no record; the GC sweeper reclaims those, so the engine never
// attempts a compensating blob delete.
type Engine struct {
	blobs    blob.Store
	meta     metadata.Store
	registry *registry.Registry
	quota    *quota.Controller
	metrics  Metrics
}

// New creates an ingestion engine. Pass nil metrics to disable
// instrumentation.
func New(blobs blob.Store, meta metadata.Store, reg *registry.Registry, m Metrics) *Engine {
	if m == nil {
		m = noopMetrics{}
	}
	return &Engine{
		blobs:    blobs,
		meta:     meta,
		registry: reg,
		quota:    quota.New(reg),
		metrics:  m,
	}
}
