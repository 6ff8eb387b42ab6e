// Package metrics provides Prometheus metrics collection for SlippiDump
// components.
//
// All metrics are optional - if not initialized, components use no-op
// implementations with zero overhead, so the server can run with or
// without metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	ingestMetrics := metrics.NewIngestMetrics()
//
//	// Or use nil for no-op behavior
//	engine := ingest.New(blobs, meta, reg, nil) // No metrics
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all SlippiDump
	// metrics. Protected by registryOnce for write-once, read-many.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. It's safe
// to call multiple times - subsequent calls are ignored.
//
// If not called, GetRegistry() returns nil and all metrics
// constructors return no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil if
// InitRegistry() has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return registry != nil
}
