package retrieval

import "fmt"

// RetrievalError reports a failure in one of the retrieval stages with
// enough context to tell which stage and which query broke.
type RetrievalError struct {
	Component string
	Operation string
	Message   string
	Query     string
	Err       error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s (query: %q): %v", e.Component, e.Operation, e.Message, e.Query, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s (query: %q)", e.Component, e.Operation, e.Message, e.Query)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

func NewRetrievalError(component, operation, message, query string, err error) *RetrievalError {
	return &RetrievalError{
		Component: component,
		Operation: operation,
		Message:   message,
		Query:     query,
		Err:       err,
	}
}
