package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer provider and metrics for one SDK instance.
type Manager struct {
	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	metrics        Metrics
	config         Config
	metricsServer  *http.Server
}

// NewManager creates an uninitialized manager for the given config.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config:         cfg,
		tracerProvider: noop.NewTracerProvider(),
		metrics:        NoopMetrics{},
	}
}

// NoopManager returns a manager with everything disabled.
func NoopManager() *Manager {
	return NewManager(Config{})
}

// Initialize builds the tracer provider and metrics per config and installs
// the metrics globally.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	metrics, err := InitMetrics(ctx, m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics

	SetGlobalMetrics(m.metrics)

	if m.config.Metrics.Enabled && m.config.Metrics.Addr != "" {
		m.metricsServer = &http.Server{
			Addr:    m.config.Metrics.Addr,
			Handler: MetricsHandler(),
		}
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("Metrics endpoint failed", "addr", srv.Addr, "error", err)
			}
		}(m.metricsServer)
	}

	return nil
}

// MetricsHandler serves the Prometheus scrape endpoint backed by the
// default registry, which the exporter feeds.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// GetTracer returns a named tracer from this manager's provider.
func (m *Manager) GetTracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

// GetMetrics returns the metrics sink, never nil.
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Shutdown stops the metrics endpoint and flushes the tracer provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := m.metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics endpoint shutdown failed", "error", err)
		}
		m.metricsServer = nil
	}

	if sd, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return sd.Shutdown(ctx)
	}
	return nil
}
