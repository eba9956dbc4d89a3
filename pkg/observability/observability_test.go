package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()

	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.Equal(t, DefaultOTLPEndpoint, cfg.Tracing.Endpoint)
	assert.Equal(t, DefaultSamplingRate, cfg.Tracing.SamplingRate)
	assert.True(t, cfg.Tracing.IsInsecure())
	assert.Equal(t, 10*time.Second, cfg.Tracing.Timeout)
	assert.Equal(t, "alita", cfg.Metrics.Namespace)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{
		Tracing: TracingConfig{Enabled: true, SamplingRate: 2.0},
	}
	cfg.SetDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampling_rate")
}

func TestDisabledManagerIsNoop(t *testing.T) {
	m := NewManager(Config{})
	require.NoError(t, m.Initialize(context.Background()))

	// Disabled tracing yields a noop provider; spans are valid but unrecorded.
	_, span := m.GetTracer("test").Start(context.Background(), "op")
	assert.False(t, span.IsRecording())
	span.End()

	metrics := m.GetMetrics()
	require.NotNil(t, metrics)
	metrics.RecordToolExecution(context.Background(), "github_list_issues", time.Second, nil)
	metrics.RecordToolBlocked(context.Background(), "jira_delete_issue")
	metrics.RecordAPICall(context.Background(), "run_pipeline", 200, time.Second)
	metrics.RecordCaseRun(context.Background(), "smoke", true, time.Second)

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestMetricsEnabled(t *testing.T) {
	metrics, err := InitMetrics(context.Background(), MetricsConfig{
		Enabled:   true,
		Namespace: "alita_test",
	})
	require.NoError(t, err)
	require.IsType(t, &PrometheusMetrics{}, metrics)

	// Recording must not panic with real instruments.
	metrics.RecordToolExecution(context.Background(), "tool", 100*time.Millisecond, assert.AnError)
	metrics.RecordCaseRun(context.Background(), "smoke", false, time.Second)
}

func TestGlobalMetricsNeverNil(t *testing.T) {
	assert.NotNil(t, GetGlobalMetrics())

	SetGlobalMetrics(NoopMetrics{})
	assert.NotNil(t, GetGlobalMetrics())
}
