package observability

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the tracing and metrics sections. Both are off by
// default; enabling one does not require the other.
type Config struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures the OpenTelemetry trace exporter.
type TracingConfig struct {
	// Enabled switches span export on.
	Enabled bool `yaml:"enabled,omitempty"`

	// Exporter is "otlp" (gRPC collector, default) or "stdout".
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP collector address. Default: localhost:4317.
	Endpoint string `yaml:"endpoint,omitempty"`

	// SamplingRate is the sampled fraction, 0.0 to 1.0. Default: 1.0.
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`

	// ServiceName labels every span this process emits.
	ServiceName string `yaml:"service_name,omitempty"`

	// ServiceVersion is stamped onto the trace resource.
	ServiceVersion string `yaml:"service_version,omitempty"`

	// Insecure disables TLS to the collector. Tri-state so an explicit
	// false survives defaulting; unset means true, for local setups.
	Insecure *bool `yaml:"insecure,omitempty"`

	// Timeout bounds exporter calls. Default: 10s.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes the scrape endpoint and starts recording.
	Enabled bool `yaml:"enabled,omitempty"`

	// Endpoint is the scrape path. Default: /metrics.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// SetDefaults fills in both subsections.
func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks both subsections.
func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// SetDefaults fills in the tracing defaults.
func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.Exporter == "" {
		c.Exporter = "otlp"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks TracingConfig. A disabled section is always valid.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate %g outside [0, 1]", c.SamplingRate)
	}
	switch c.Exporter {
	case "otlp":
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the otlp exporter")
		}
	case "stdout":
	default:
		return fmt.Errorf("invalid exporter %q (valid: otlp, stdout)", c.Exporter)
	}
	return nil
}

// IsInsecure reports whether the exporter connection skips TLS.
func (c *TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}

// SetDefaults fills in the metrics defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "/metrics"
	}
}

// Validate checks MetricsConfig.
func (c *MetricsConfig) Validate() error {
	if c.Enabled && !strings.HasPrefix(c.Endpoint, "/") {
		return fmt.Errorf("endpoint must be an absolute path, got %q", c.Endpoint)
	}
	return nil
}
