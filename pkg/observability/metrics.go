package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics wires the OTel meter to the Prometheus default registry and
// creates the service instruments. When disabled it returns a zero recorder
// whose methods are no-ops.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusRecorder, *sdkmetric.MeterProvider, error) {
	if !cfg.Enabled {
		return &PrometheusRecorder{}, nil, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("climatechat")

	var errs []error
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	recorder := &PrometheusRecorder{
		httpDuration:  histogram("climatechat_http_request_duration_seconds", "Inbound API request duration in seconds"),
		stageDuration: histogram("climatechat_stage_duration_seconds", "Pipeline stage duration in seconds"),
		depDuration:   histogram("climatechat_dependency_request_duration_seconds", "Outbound dependency call duration in seconds"),
		depErrors:     counter("climatechat_dependency_errors_total", "Total outbound dependency call errors"),
		outcomes:      counter("climatechat_requests_total", "Total finished pipeline runs by outcome"),
		cacheLookups:  counter("climatechat_cache_lookups_total", "Total cache lookups by cache and result"),
		llmTokens:     counter("climatechat_llm_tokens_total", "Total tokens exchanged with generation backends"),
		fallbacks:     counter("climatechat_fallbacks_total", "Total degraded-path activations by kind"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, nil, fmt.Errorf("failed to create instruments: %w", err)
	}
	return recorder, provider, nil
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
