// Package cache implements the Redis response cache. Whole answers are
// cached per (language, normalized query) so a repeated question is
// served bit-identical without touching the index or a backend. The
// cache is an optimization only: every failure path logs and reports a
// miss, and an unreachable server disables the cache until a later
// health check brings it back.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
)

// healthRecheckInterval is how long a health verdict is trusted before
// the next use re-pings the server.
const healthRecheckInterval = 30 * time.Second

// CachedAnswer is the stored value: the answer plus enough envelope to
// audit entries server-side.
type CachedAnswer struct {
	Answer       *protocol.Answer `json:"answer"`
	LanguageCode string           `json:"language_code"`
	CachedAt     time.Time        `json:"cached_at"`
}

// ResponseCache caches whole answers in Redis. A nil *ResponseCache is
// valid and behaves as a disabled cache.
type ResponseCache struct {
	client   *redis.Client
	cfg      *config.RedisConfig
	recorder observability.Recorder

	mu        sync.Mutex
	healthy   bool
	lastCheck time.Time
}

// Key builds the cache key for a query in a language. The query is
// lowercased and stripped so trivial retyping still hits.
func Key(languageCode, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("q:%s:%s", languageCode, hex.EncodeToString(sum[:]))
}

// NewResponseCache connects to Redis and runs the startup health
// check. An unreachable server is not an error: the cache starts
// disabled and later uses re-ping it.
func NewResponseCache(cfg *config.RedisConfig, recorder observability.Recorder) *ResponseCache {
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	c := &ResponseCache{client: client, cfg: cfg, recorder: recorder}
	if c.available(context.Background()) {
		slog.Info("Response cache connected", "addr", cfg.Addr, "ttl", cfg.TTL)
	}
	return c
}

// Get looks up a cached answer. Any failure (disabled cache, miss,
// server error, corrupt entry) reports a miss; the caller never sees
// an error.
func (c *ResponseCache) Get(ctx context.Context, languageCode, query string) (*protocol.Answer, bool) {
	if c == nil || !c.available(ctx) {
		return nil, false
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	key := Key(languageCode, query)
	data, err := c.client.Get(opCtx, key).Bytes()
	if err == redis.Nil {
		c.recorder.RecordCacheLookup(ctx, "response", false)
		return nil, false
	}
	if err != nil {
		c.markUnhealthy(err)
		c.recorder.RecordCacheLookup(ctx, "response", false)
		return nil, false
	}

	var entry CachedAnswer
	if err := json.Unmarshal(data, &entry); err != nil || entry.Answer == nil {
		slog.Warn("Dropping corrupt cache entry", "key", key, "error", err)
		c.recorder.RecordCacheLookup(ctx, "response", false)
		return nil, false
	}

	c.recorder.RecordCacheLookup(ctx, "response", true)
	return entry.Answer, true
}

// Set stores an answer under the configured TTL. Failures are logged
// and swallowed.
func (c *ResponseCache) Set(ctx context.Context, languageCode, query string, answer *protocol.Answer) {
	if c == nil || answer == nil || !c.available(ctx) {
		return
	}

	entry := CachedAnswer{
		Answer:       answer,
		LanguageCode: languageCode,
		CachedAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("Failed to serialize answer for cache", "error", err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	if err := c.client.Set(opCtx, Key(languageCode, query), data, c.cfg.TTL).Err(); err != nil {
		c.markUnhealthy(err)
	}
}

// Ready pings the server directly, for the readiness endpoint.
func (c *ResponseCache) Ready(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("response cache not configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	return c.client.Ping(pingCtx).Err()
}

// Close releases the client.
func (c *ResponseCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// available reports whether the cache should be used, re-pinging the
// server when the last verdict has gone stale.
func (c *ResponseCache) available(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastCheck) < healthRecheckInterval {
		return c.healthy
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	err := c.client.Ping(pingCtx).Err()
	wasHealthy := c.healthy
	c.healthy = err == nil
	c.lastCheck = time.Now()

	if err != nil {
		slog.Warn("Response cache unavailable, continuing uncached", "addr", c.cfg.Addr, "error", err)
	} else if !wasHealthy {
		slog.Info("Response cache recovered", "addr", c.cfg.Addr)
	}
	return c.healthy
}

// markUnhealthy disables the cache until the recheck interval elapses.
func (c *ResponseCache) markUnhealthy(err error) {
	slog.Warn("Response cache operation failed, disabling temporarily", "error", err)
	c.mu.Lock()
	c.healthy = false
	c.lastCheck = time.Now()
	c.mu.Unlock()
}
