package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseCohereHeaders extracts rate limit info from Cohere API headers.
// Cohere signals backpressure with a standard Retry-After plus
// x-ratelimit-* counters on trial keys.
func ParseCohereHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{
		RetryAfter: parseRetryAfter(headers.Get("Retry-After")),
	}

	if remaining := headers.Get("x-ratelimit-remaining"); remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			info.RequestsRemaining = n
		}
	}
	if reset := headers.Get("x-ratelimit-reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			info.ResetTime = epoch
		}
	}

	return info
}

// ParseRetryAfterHeaders extracts only the standard Retry-After header.
// Suitable for APIs without vendor rate-limit headers (web search).
func ParseRetryAfterHeaders(headers http.Header) RateLimitInfo {
	return RateLimitInfo{
		RetryAfter: parseRetryAfter(headers.Get("Retry-After")),
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
