package pipeline

import "fmt"

// ErrorCode is the failure taxonomy surfaced to transports. Every
// non-success outcome of Process carries exactly one code.
type ErrorCode string

const (
	CodeEmptyQuery       ErrorCode = "empty_query"
	CodeTooLongQuery     ErrorCode = "too_long_query"
	CodeOffTopic         ErrorCode = "off_topic"
	CodeHarmfulQuery     ErrorCode = "harmful_query"
	CodeLanguageMismatch ErrorCode = "language_mismatch"
	CodeRetrievalEmpty   ErrorCode = "retrieval_empty"
	CodeGenerationFailed ErrorCode = "generation_failed"
	CodeInternal         ErrorCode = "internal_error"
)

// Error is a pipeline outcome with a taxonomy code. Message is safe to
// show to the user; Err carries the internal cause for logs only.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a user-facing pipeline error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError attaches an internal cause to a pipeline error.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// English user-facing messages for classification refusals; the
// orchestrator localizes them to the request language on the way out.
var refusalMessages = map[ErrorCode]string{
	CodeEmptyQuery:       "Please enter a question.",
	CodeTooLongQuery:     "That question is too long. Please keep it under 1000 characters.",
	CodeOffTopic:         "I can only help with climate-related questions. Try asking about climate change, extreme weather, or how to prepare your home and community.",
	CodeHarmfulQuery:     "I can't help with that request.",
	CodeLanguageMismatch: "The question doesn't seem to be written in the language you selected. Please switch the language selector or rephrase your question.",
	CodeRetrievalEmpty:   "I couldn't find relevant sources for that question. Try rephrasing it or asking about a related climate topic.",
}
