package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vladfi1/SlippiDump/pkg/ingest"
)

// ingestMetrics is the Prometheus implementation of ingest.Metrics.
//
// It collects:
//   - Admission counts and stored bytes by database and kind
//   - Rejection counts by database and reason
//   - Archive expansion sizes
//   - Ingestion operation latency
type ingestMetrics struct {
	admissionsTotal   *prometheus.CounterVec
	storedBytesTotal  *prometheus.CounterVec
	rejectionsTotal   *prometheus.CounterVec
	archiveEntries    *prometheus.HistogramVec
	operationDuration *prometheus.HistogramVec
}

// NewIngestMetrics creates a Prometheus-backed ingest.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called),
// which causes the engine to use its built-in no-op implementation.
func NewIngestMetrics() ingest.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &ingestMetrics{
		admissionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "slippidump_admissions_total",
				Help: "Total number of replays admitted by database and kind",
			},
			[]string{"database", "kind"},
		),
		storedBytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "slippidump_stored_bytes_total",
				Help: "Total bytes written to the blob store by database and kind",
			},
			[]string{"database", "kind"},
		),
		rejectionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "slippidump_rejections_total",
				Help: "Total number of rejected uploads by database and reason",
			},
			[]string{"database", "reason"},
		),
		archiveEntries: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slippidump_archive_entries",
				Help:    "Number of replay members per expanded archive",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"database"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "slippidump_ingest_duration_seconds",
				Help: "Duration of ingestion operations in seconds",
				Buckets: []float64{
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
					30.0,  // 30s
				},
			},
			[]string{"database", "operation"},
		),
	}
}

func (m *ingestMetrics) RecordAdmission(database, kind string, storedBytes int64) {
	m.admissionsTotal.WithLabelValues(database, kind).Inc()
	m.storedBytesTotal.WithLabelValues(database, kind).Add(float64(storedBytes))
}

func (m *ingestMetrics) RecordRejection(database, reason string) {
	m.rejectionsTotal.WithLabelValues(database, reason).Inc()
}

func (m *ingestMetrics) RecordArchiveExpanded(database string, entries int) {
	m.archiveEntries.WithLabelValues(database).Observe(float64(entries))
}

func (m *ingestMetrics) ObserveDuration(database, operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(database, operation).Observe(d.Seconds())
}
