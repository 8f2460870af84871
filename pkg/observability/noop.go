package observability

import (
	"context"
	"time"
)

// NoopRecorder is a Recorder implementation that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) RecordHTTPRequest(_, _ string, _ int, _ time.Duration, _, _ int64)           {}
func (NoopRecorder) RecordStage(_ context.Context, _ string, _ time.Duration, _ error)           {}
func (NoopRecorder) RecordDependencyCall(_ context.Context, _, _ string, _ time.Duration, _ error) {
}
func (NoopRecorder) RecordRequestOutcome(_ context.Context, _ string)       {}
func (NoopRecorder) RecordCacheLookup(_ context.Context, _ string, _ bool)  {}
func (NoopRecorder) RecordLLMTokens(_ context.Context, _ string, _, _ int)  {}
func (NoopRecorder) RecordFallback(_ context.Context, _ string)             {}

// Ensure implementations satisfy the interface.
var (
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = NoopRecorder{}
)
