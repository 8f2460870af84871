// Package protocol holds the conversation primitives shared across
// pipeline stages and the HTTP surface: turns, roles, citations, and
// request-scoped context helpers.
package protocol

import (
	"context"

	"github.com/google/uuid"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior exchange in the conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserTurn creates a user turn.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// NewAssistantTurn creates an assistant turn.
func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Citation points at a source document backing part of an answer. URL
// must come from the final retrieved set; answers citing anything else
// are rejected.
type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// RetrievalSource identifies where an answer's grounding came from.
type RetrievalSource string

const (
	// SourceSearch marks answers grounded in the vector index.
	SourceSearch RetrievalSource = "search"

	// SourceCanned marks deterministic replies that bypassed retrieval
	// and generation entirely.
	SourceCanned RetrievalSource = "canned"

	// SourceFallbackWeb marks answers re-grounded in web search results
	// after the first pass failed the faithfulness check.
	SourceFallbackWeb RetrievalSource = "fallback-web"
)

// Answer is the pipeline's terminal artifact for one request.
type Answer struct {
	// Text is the answer in the request's expected language.
	Text string `json:"text"`

	// Citations reference the documents the text is grounded in; a
	// subset of the final retrieved set's URLs.
	Citations []Citation `json:"citations"`

	// FaithfulnessScore estimates how well the text is supported by
	// its source documents, in [0,1]. Zero when the check was skipped
	// or failed.
	FaithfulnessScore float64 `json:"faithfulness_score"`

	// ModelUsed names the generation backend that produced the text.
	ModelUsed string `json:"model_used"`

	RetrievalSource RetrievalSource `json:"retrieval_source"`

	// LanguageUsed is the language the answer was delivered in.
	LanguageUsed string `json:"language_used"`

	ProcessingTimeMS int64 `json:"processing_time_ms"`

	// StepTimesMS records the wall-clock milliseconds of every stage
	// that actually ran.
	StepTimesMS map[string]int64 `json:"step_times_ms,omitempty"`

	// Warnings surface degraded stages (rerank fallback, skipped
	// faithfulness check) without failing the request.
	Warnings []string `json:"warnings,omitempty"`

	RequestID string `json:"request_id"`
}

// requestIDKeyType is a custom type for context keys to avoid collisions.
type requestIDKeyType struct{}

var requestIDKey requestIDKeyType

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID from the context, or an empty string.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// NewRequestID generates a fresh request ID.
func NewRequestID() string {
	return uuid.New().String()
}
