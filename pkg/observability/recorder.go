package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder is the metrics facade used by the pipeline and the HTTP layer.
// Components record through it and never touch OTel instruments directly,
// which keeps them testable with NoopRecorder.
type Recorder interface {
	// RecordHTTPRequest records one inbound API request.
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64)

	// RecordStage records one pipeline stage execution.
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)

	// RecordDependencyCall records one outbound dependency call
	// (dep=pinecone op=query, dep=cohere op=rerank, ...).
	RecordDependencyCall(ctx context.Context, dep, op string, duration time.Duration, err error)

	// RecordRequestOutcome counts finished pipeline runs by outcome
	// (answered, canned, refused, failed).
	RecordRequestOutcome(ctx context.Context, outcome string)

	// RecordCacheLookup counts cache hits and misses per cache
	// (response, embedding).
	RecordCacheLookup(ctx context.Context, cache string, hit bool)

	// RecordLLMTokens counts tokens exchanged with a generation backend.
	RecordLLMTokens(ctx context.Context, model string, inputTokens, outputTokens int)

	// RecordFallback counts degraded-path activations
	// (reranker_order, web_search, filter_removed, sparse_disabled).
	RecordFallback(ctx context.Context, kind string)
}

// PrometheusRecorder implements Recorder on OTel instruments backed by the
// Prometheus exporter. A zero value is a safe no-op.
type PrometheusRecorder struct {
	httpDuration  metric.Float64Histogram
	stageDuration metric.Float64Histogram
	depDuration   metric.Float64Histogram
	depErrors     metric.Int64Counter
	outcomes      metric.Int64Counter
	cacheLookups  metric.Int64Counter
	llmTokens     metric.Int64Counter
	fallbacks     metric.Int64Counter
}

func (m *PrometheusRecorder) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.Record(context.Background(), duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", statusCode),
	))
}

func (m *PrometheusRecorder) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if m == nil || m.stageDuration == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
		attribute.Bool("error", err != nil),
	}
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func (m *PrometheusRecorder) RecordDependencyCall(ctx context.Context, dep, op string, duration time.Duration, err error) {
	if m == nil || m.depDuration == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("dep", dep),
		attribute.String("op", op),
	}
	m.depDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.depErrors != nil {
		m.depErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusRecorder) RecordRequestOutcome(ctx context.Context, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *PrometheusRecorder) RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.String("result", result),
	))
}

func (m *PrometheusRecorder) RecordLLMTokens(ctx context.Context, model string, inputTokens, outputTokens int) {
	if m == nil || m.llmTokens == nil {
		return
	}
	modelAttr := attribute.String("model", model)
	if inputTokens > 0 {
		m.llmTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(modelAttr, attribute.String("direction", "input")))
	}
	if outputTokens > 0 {
		m.llmTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(modelAttr, attribute.String("direction", "output")))
	}
}

func (m *PrometheusRecorder) RecordFallback(ctx context.Context, kind string) {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
