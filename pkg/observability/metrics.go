package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records SDK-level measurements.
type Metrics interface {
	// RecordToolExecution records one tool call with its outcome.
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)

	// RecordToolBlocked counts a blocklist rejection.
	RecordToolBlocked(ctx context.Context, tool string)

	// RecordAPICall records one platform API request.
	RecordAPICall(ctx context.Context, operation string, status int, duration time.Duration)

	// RecordCaseRun records one pipeline test case result.
	RecordCaseRun(ctx context.Context, suite string, success bool, duration time.Duration)
}

// PrometheusMetrics implements Metrics over an otel meter backed by the
// Prometheus exporter.
type PrometheusMetrics struct {
	toolDuration     metric.Float64Histogram
	toolCallsTotal   metric.Int64Counter
	toolErrorsTotal  metric.Int64Counter
	toolBlockedTotal metric.Int64Counter

	apiDuration   metric.Float64Histogram
	apiCallsTotal metric.Int64Counter

	caseDuration    metric.Float64Histogram
	caseRunsTotal   metric.Int64Counter
	caseFailedTotal metric.Int64Counter
}

// InitMetrics builds the meter and instruments. Returns NoopMetrics when
// disabled.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (Metrics, error) {
	if !cfg.Enabled {
		return NoopMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter(cfg.Namespace)

	m := &PrometheusMetrics{}

	m.toolDuration, err = meter.Float64Histogram(
		cfg.Namespace+"_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	m.toolCallsTotal, err = meter.Int64Counter(
		cfg.Namespace+"_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	m.toolErrorsTotal, err = meter.Int64Counter(
		cfg.Namespace+"_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	m.toolBlockedTotal, err = meter.Int64Counter(
		cfg.Namespace+"_tool_blocked_total",
		metric.WithDescription("Total tool calls rejected by the blocklist"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool blocked counter: %w", err)
	}

	m.apiDuration, err = meter.Float64Histogram(
		cfg.Namespace+"_platform_request_duration_seconds",
		metric.WithDescription("Platform API request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api duration histogram: %w", err)
	}

	m.apiCallsTotal, err = meter.Int64Counter(
		cfg.Namespace+"_platform_requests_total",
		metric.WithDescription("Total platform API requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api calls counter: %w", err)
	}

	m.caseDuration, err = meter.Float64Histogram(
		cfg.Namespace+"_pipeline_case_duration_seconds",
		metric.WithDescription("Pipeline test case duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create case duration histogram: %w", err)
	}

	m.caseRunsTotal, err = meter.Int64Counter(
		cfg.Namespace+"_pipeline_cases_total",
		metric.WithDescription("Total pipeline test cases run"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create case runs counter: %w", err)
	}

	m.caseFailedTotal, err = meter.Int64Counter(
		cfg.Namespace+"_pipeline_cases_failed_total",
		metric.WithDescription("Total pipeline test cases that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create case failures counter: %w", err)
	}

	return m, nil
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("tool", tool))

	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCallsTotal.Add(ctx, 1, attrs)

	if err != nil {
		m.toolErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordToolBlocked(ctx context.Context, tool string) {
	if m == nil || m.toolBlockedTotal == nil {
		return
	}
	m.toolBlockedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

func (m *PrometheusMetrics) RecordAPICall(ctx context.Context, operation string, status int, duration time.Duration) {
	if m == nil || m.apiDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("status", status),
	)

	m.apiDuration.Record(ctx, duration.Seconds(), attrs)
	m.apiCallsTotal.Add(ctx, 1, attrs)
}

func (m *PrometheusMetrics) RecordCaseRun(ctx context.Context, suite string, success bool, duration time.Duration) {
	if m == nil || m.caseDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("suite", suite))

	m.caseDuration.Record(ctx, duration.Seconds(), attrs)
	m.caseRunsTotal.Add(ctx, 1, attrs)

	if !success {
		m.caseFailedTotal.Add(ctx, 1, attrs)
	}
}

// SetGlobalMetrics replaces the process-wide metrics sink.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics sink, never nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
