// Package ratelimit implements per-client token-bucket rate limiting
// for the HTTP API. Each client identity gets a bucket holding up to
// Burst tokens that refills at RequestsPerMinute/60 tokens per second;
// a request with no token available is rejected. Buckets live in
// memory and idle ones are swept periodically, so limits are
// per-instance.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// sweepInterval is how often the janitor scans for idle buckets.
const sweepInterval = 5 * time.Minute

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed bool

	// Remaining is the number of whole tokens left after this request.
	Remaining int

	// RetryAfter is how long until the next token accrues. Zero when
	// the request was allowed.
	RetryAfter time.Duration
}

// bucket tracks one client's token balance. Tokens are fractional so
// refill math does not lose partial tokens between checks.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter hands out tokens per client identity.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	capacity float64
	rate     float64 // tokens per second
	idleTTL  time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewLimiter builds a limiter from configuration and starts the idle
// bucket janitor. Call Close to stop it.
func NewLimiter(cfg *config.RateLimitConfig) *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(cfg.Burst),
		rate:     float64(cfg.RequestsPerMinute) / 60.0,
		idleTTL:  cfg.IdleTTL,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Allow takes one token from identifier's bucket, creating a full
// bucket on first sight.
func (l *Limiter) Allow(identifier string) Decision {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[identifier]
	if !ok {
		b = &bucket{tokens: l.capacity, lastSeen: now}
		l.buckets[identifier] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.rate)
		b.lastSeen = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true, Remaining: int(b.tokens)}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: l.timeToNextToken(b.tokens),
	}
}

// timeToNextToken converts the missing fraction of a token into a wait,
// rounded up to a whole second for the Retry-After header.
func (l *Limiter) timeToNextToken(tokens float64) time.Duration {
	if l.rate <= 0 {
		return time.Minute
	}
	wait := time.Duration((1 - tokens) / l.rate * float64(time.Second))
	if wait < time.Second {
		return time.Second
	}
	return wait.Round(time.Second)
}

// Len reports how many buckets are live.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops buckets idle longer than the TTL.
func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, id)
		}
	}
}

func (l *Limiter) janitor() {
	defer close(l.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.sweep(now)
		case <-l.stop:
			return
		}
	}
}

// Close stops the janitor and waits for it to exit.
func (l *Limiter) Close() {
	close(l.stop)
	<-l.done
}
