package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestZeroRecorderIsSafe(t *testing.T) {
	ctx := context.Background()

	// A zero PrometheusRecorder (metrics disabled) must swallow every call.
	rec := &PrometheusRecorder{}

	rec.RecordHTTPRequest("POST", "/api/v1/chat/query", 200, 120*time.Millisecond, 512, 2048)
	rec.RecordStage(ctx, "retrieve", 80*time.Millisecond, nil)
	rec.RecordStage(ctx, "generate", 2*time.Second, errors.New("timeout"))
	rec.RecordDependencyCall(ctx, "pinecone", "query", 40*time.Millisecond, nil)
	rec.RecordRequestOutcome(ctx, "answered")
	rec.RecordCacheLookup(ctx, "response", true)
	rec.RecordLLMTokens(ctx, "command-a-03-2025", 1200, 340)
	rec.RecordFallback(ctx, "reranker_order")
}

func TestNoopRecorder(t *testing.T) {
	ctx := context.Background()
	var rec Recorder = NoopRecorder{}

	rec.RecordStage(ctx, "classify", 10*time.Millisecond, nil)
	rec.RecordDependencyCall(ctx, "cohere", "embed", 15*time.Millisecond, nil)
	rec.RecordCacheLookup(ctx, "embedding", false)
}

func TestNoopManager(t *testing.T) {
	m := NoopManager()

	tracer := m.GetTracer("test")
	_, span := tracer.Start(context.Background(), "pipeline.run")
	span.End()

	if m.Recorder() == nil {
		t.Fatal("NoopManager should still expose a recorder")
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}

func TestTracingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TracingConfig
		wantErr bool
	}{
		{name: "disabled_skips_validation", cfg: TracingConfig{Enabled: false, SamplingRate: 7}, wantErr: false},
		{name: "valid_otlp", cfg: TracingConfig{Enabled: true, Exporter: "otlp", Endpoint: "localhost:4317", SamplingRate: 0.5}, wantErr: false},
		{name: "valid_stdout", cfg: TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 1.0}, wantErr: false},
		{name: "bad_sampling_rate", cfg: TracingConfig{Enabled: true, Exporter: "otlp", Endpoint: "x", SamplingRate: 1.5}, wantErr: true},
		{name: "unknown_exporter", cfg: TracingConfig{Enabled: true, Exporter: "zipkin", SamplingRate: 1.0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTracingConfigDefaults(t *testing.T) {
	cfg := TracingConfig{}
	cfg.SetDefaults()

	if cfg.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, DefaultServiceName)
	}
	if cfg.SamplingRate != 1.0 {
		t.Errorf("SamplingRate = %v, want 1.0", cfg.SamplingRate)
	}
	if cfg.Exporter != "otlp" {
		t.Errorf("Exporter = %q, want otlp", cfg.Exporter)
	}
	if !cfg.IsInsecure() {
		t.Error("IsInsecure() = false, want true by default")
	}
}

func TestDisabledTracerIsNoop(t *testing.T) {
	tp, err := InitGlobalTracer(context.Background(), TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("InitGlobalTracer() error = %v", err)
	}
	_, span := tp.Tracer("test").Start(context.Background(), "pipeline.retrieve")
	span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled tracer should produce invalid (noop) span contexts")
	}
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	rec, mp, err := InitMetrics(context.Background(), MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("InitMetrics() error = %v", err)
	}
	if mp != nil {
		t.Error("disabled metrics should not build a meter provider")
	}
	rec.RecordStage(context.Background(), "finalize", time.Millisecond, nil)
}
