// Package server is the HTTP upload adapter: a thin multipart front
// over the ingestion engine. All admission logic lives in pkg/ingest;
// this layer only decodes requests and maps rejections to status codes.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vladfi1/SlippiDump/internal/logger"
	"github.com/vladfi1/SlippiDump/pkg/ingest"
	"github.com/vladfi1/SlippiDump/pkg/metrics"
	"github.com/vladfi1/SlippiDump/pkg/registry"
)

// Config configures the HTTP server.
type Config struct {
	// ListenAddr is the address to listen on.
	ListenAddr string

	// MaxUploadBytes caps a single request body.
	MaxUploadBytes int64

	// MetricsPath mounts the Prometheus handler when metrics are
	// enabled. Empty disables the endpoint.
	MetricsPath string
}

// Server serves the upload API.
type Server struct {
	server       *http.Server
	engine       *ingest.Engine
	registry     *registry.Registry
	config       Config
	shutdownOnce sync.Once
}

// New creates the HTTP server around an ingestion engine.
func New(cfg Config, engine *ingest.Engine, reg *registry.Registry) *Server {
	s := &Server{
		engine:   engine,
		registry: reg,
		config:   cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /upload/raw", s.handleUploadRaw)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("DELETE /databases/{db}", s.handlePurge)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if cfg.MetricsPath != "" && metrics.IsEnabled() {
		mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start begins serving requests and blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start() error {
	logger.Info("HTTP server listening on %s", s.config.ListenAddr)

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// up to the context deadline. Safe to call multiple times.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("Shutting down HTTP server...")
		err = s.server.Shutdown(ctx)
	})
	return err
}
