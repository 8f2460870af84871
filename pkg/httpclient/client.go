// Package httpclient provides the retrying HTTP client shared by the
// Cohere and web-search provider clients. Retries are driven by the
// response status: rate limits wait out the provider's reset headers,
// transient server errors get a short fixed ladder, and everything else
// fails fast. A retry that would sleep past the request deadline is
// skipped in favor of the underlying error.
package httpclient

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// RetryStrategy classifies how a failed attempt may be retried.
type RetryStrategy int

const (
	// NoRetry makes the attempt terminal.
	NoRetry RetryStrategy = iota

	// ConservativeRetry allows up to two short fixed-delay retries.
	ConservativeRetry

	// SmartRetry waits out the provider's rate-limit headers, falling
	// back to exponential backoff when none were sent.
	SmartRetry
)

// RateLimitInfo carries whatever rate-limit state a provider exposed
// through response headers.
type RateLimitInfo struct {
	RetryAfter        time.Duration
	ResetTime         int64
	RequestsRemaining int
	TokensRemaining   int
}

// RateLimitHeaderParser extracts RateLimitInfo from response headers.
type RateLimitHeaderParser func(http.Header) RateLimitInfo

// RetryStrategyFunc picks the strategy for a status code.
type RetryStrategyFunc func(int) RetryStrategy

// Client wraps http.Client with status-driven retries.
type Client struct {
	hc           *http.Client
	retries      int
	baseDelay    time.Duration
	parseHeaders RateLimitHeaderParser
	classify     RetryStrategyFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client, usually to set a
// per-call timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithMaxRetries caps how many retries follow the first attempt.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithBaseDelay sets the exponential backoff base for SmartRetry.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithHeaderParser installs a provider-specific rate-limit header
// parser.
func WithHeaderParser(p RateLimitHeaderParser) Option {
	return func(c *Client) { c.parseHeaders = p }
}

// WithRetryStrategy replaces the status-to-strategy mapping.
func WithRetryStrategy(f RetryStrategyFunc) Option {
	return func(c *Client) { c.classify = f }
}

// New builds a Client. Without options: 60s call timeout, 3 retries,
// 2s backoff base, DefaultRetryStrategy.
func New(opts ...Option) *Client {
	c := &Client{
		hc:        &http.Client{Timeout: 60 * time.Second},
		retries:   3,
		baseDelay: 2 * time.Second,
		classify:  DefaultRetryStrategy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultRetryStrategy maps status codes to strategies: rate limiting
// and overload wait for the provider, transient gateway errors retry
// quickly, everything else is terminal.
func DefaultRetryStrategy(status int) RetryStrategy {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	}
	return NoRetry
}

// attemptResult bundles one round trip with its retry verdict.
type attemptResult struct {
	resp     *http.Response
	strategy RetryStrategy
	limits   RateLimitInfo
	err      error
}

// Do issues req, retrying per the configured strategy. A 2xx response
// returns with a nil error; a terminal non-2xx response is returned
// alongside a non-nil error so the caller can read the provider's
// error body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for try := 0; ; try++ {
		if try > 0 {
			if err := rewindBody(req); err != nil {
				return nil, err
			}
		}

		last := c.send(req)
		if last.err == nil || last.strategy == NoRetry {
			return last.resp, last.err
		}

		wait := c.retryDelay(last.strategy, try, last.limits)
		if try >= c.retries {
			return last.resp, &RetryableError{
				StatusCode: last.resp.StatusCode,
				Message:    fmt.Sprintf("max HTTP retries (%d) exceeded", c.retries),
				RetryAfter: wait,
				Err:        last.err,
			}
		}
		if wait <= 0 {
			return last.resp, last.err
		}

		// A retry scheduled past the request deadline can never run.
		if deadline, ok := req.Context().Deadline(); ok && time.Until(deadline) <= wait {
			return last.resp, last.err
		}

		c.logRetry(last.strategy, wait, try, last.resp.StatusCode)
		last.resp.Body.Close()
		time.Sleep(wait)
	}
}

// rewindBody restores the request body before a retry. Requests built
// from a byte reader carry GetBody automatically.
func rewindBody(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to recreate request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

func (c *Client) send(req *http.Request) attemptResult {
	resp, err := c.hc.Do(req)
	if err != nil {
		// Transport errors include context cancellation; the caller
		// owns the deadline, so these are terminal.
		return attemptResult{strategy: NoRetry, err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return attemptResult{resp: resp}
	}

	result := attemptResult{
		resp:     resp,
		strategy: c.classify(resp.StatusCode),
		err:      fmt.Errorf("HTTP %d", resp.StatusCode),
	}
	if c.parseHeaders != nil {
		result.limits = c.parseHeaders(resp.Header)
	}
	return result
}

// retryDelay computes the pause before the next attempt; zero means
// the attempt should not be retried.
func (c *Client) retryDelay(strategy RetryStrategy, try int, limits RateLimitInfo) time.Duration {
	switch strategy {
	case SmartRetry:
		if limits.RetryAfter > 0 {
			return limits.RetryAfter
		}
		if limits.ResetTime > 0 {
			if wait := time.Until(time.Unix(limits.ResetTime, 0)); wait > 0 {
				return wait
			}
		}
		backoff := c.baseDelay << uint(try)
		return backoff + time.Duration(float64(backoff)*0.1)

	case ConservativeRetry:
		// Server blips get at most two quick retries.
		if try >= 2 {
			return 0
		}
		return time.Duration(2+try) * time.Second
	}
	return 0
}

func (c *Client) logRetry(strategy RetryStrategy, wait time.Duration, try, status int) {
	switch strategy {
	case SmartRetry:
		slog.Warn("Rate limited, retrying",
			"status", status,
			"delay", wait,
			"attempt", try+1,
			"max_attempts", c.retries)
	case ConservativeRetry:
		slog.Debug("Server error, quick retry",
			"status", status,
			"delay", wait,
			"attempt", try+1)
	}
}
