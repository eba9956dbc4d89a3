// Package observability wires OpenTelemetry tracing and Prometheus-backed
// metrics for the SDK: tool executions, platform API calls, and pipeline
// case runs. Everything degrades to no-ops when disabled.
package observability

import (
	"fmt"
	"time"
)

// Config configures the observability system.
type Config struct {
	// Tracing configures OpenTelemetry distributed tracing.
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`

	// Metrics configures Prometheus metrics collection.
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing over OTLP/gRPC.
type TracingConfig struct {
	// Enabled turns on distributed tracing. Default: false.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317".
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// SamplingRate is the fraction of traces sampled, 0.0 to 1.0.
	// Default: 1.0.
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`

	// ServiceName identifies this service in traces. Default: "alita-sdk".
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`

	// Insecure disables TLS on the exporter connection. Default: true.
	Insecure *bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`

	// Timeout bounds exporter operations. Default: 10s.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns on metrics collection. Default: false.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Namespace prefixes all metric names. Default: "alita".
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// Addr, when set, serves a Prometheus scrape endpoint at /metrics.
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

const (
	DefaultServiceName  = "alita-sdk"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)

func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = DefaultSamplingRate
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultOTLPEndpoint
	}
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when tracing is enabled")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	return nil
}

// IsInsecure reports whether the exporter connection skips TLS.
func (c *TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}

func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "alita"
	}
}
