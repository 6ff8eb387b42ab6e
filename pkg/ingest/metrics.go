package ingest

import "time"

// Metrics is the interface the engine uses to report ingestion
// activity. A Prometheus-backed implementation lives in pkg/metrics;
// passing nil selects the built-in no-op implementation.
type Metrics interface {
	// RecordAdmission is called after a replay is fully persisted.
	RecordAdmission(database, kind string, storedBytes int64)

	// RecordRejection is called when an upload is refused, with the
	// rejection reason's wire value.
	RecordRejection(database, reason string)

	// RecordArchiveExpanded is called once per expanded archive with
	// the number of replay members it contained.
	RecordArchiveExpanded(database string, entries int)

	// ObserveDuration records how long an ingestion operation took.
	ObserveDuration(database, operation string, d time.Duration)
}

// noopMetrics is used when no metrics implementation is provided.
type noopMetrics struct{}

func (noopMetrics) RecordAdmission(string, string, int64)        {}
func (noopMetrics) RecordRejection(string, string)               {}
func (noopMetrics) RecordArchiveExpanded(string, int)            {}
func (noopMetrics) ObserveDuration(string, string, time.Duration) {}
