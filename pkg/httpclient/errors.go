package httpclient

import (
	"fmt"
	"time"
)

// RetryableError is returned when the retry budget runs out while the
// failure still looked transient. RetryAfter carries the pause the
// next attempt would have taken, so a caller queuing its own retry can
// respect it.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream returned HTTP %d: %s, retry after %v", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error { return e.Err }
