package observability

import (
	"context"
	"net/http"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer provider and metrics recorder for the
// process. Initialize must complete before the accessors are used;
// after that the manager is read-only and safe to share.
type Manager struct {
	config Config

	tracerProvider trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	recorder       Recorder
}

func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// NoopManager returns a Manager that records nothing. Use when
// observability is completely disabled (tests, one-shot CLI queries).
func NoopManager() *Manager {
	return &Manager{
		tracerProvider: noop.NewTracerProvider(),
		recorder:       NoopRecorder{},
	}
}

// Initialize builds the exporters the config asks for. Disabled
// sections initialize to noop implementations.
func (m *Manager) Initialize(ctx context.Context) error {
	tp, err := InitGlobalTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	recorder, meterProvider, err := InitMetrics(ctx, m.config.Metrics)
	if err != nil {
		return err
	}

	m.tracerProvider = tp
	m.recorder = recorder
	m.meterProvider = meterProvider
	return nil
}

// GetTracer returns a named tracer, noop when uninitialized.
func (m *Manager) GetTracer(name string) trace.Tracer {
	if m.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Recorder returns the metrics recorder, noop when uninitialized.
func (m *Manager) Recorder() Recorder {
	if m.recorder == nil {
		return NoopRecorder{}
	}
	return m.recorder
}

// MetricsEnabled reports whether the scrape endpoint should be mounted.
func (m *Manager) MetricsEnabled() bool {
	return m.config.Metrics.Enabled
}

// MetricsEndpoint returns the configured scrape path.
func (m *Manager) MetricsEndpoint() string {
	return m.config.Metrics.Endpoint
}

// MetricsHandler returns the scrape handler, or a 503 handler when metrics
// are disabled.
func (m *Manager) MetricsHandler() http.Handler {
	if !m.config.Metrics.Enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return MetricsHandler()
}

// Shutdown flushes and stops both providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.meterProvider != nil {
		if err := m.meterProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if tp, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}
