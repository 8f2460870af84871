package retrieval

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EmbeddingCache is a process-wide LRU of document dense vectors keyed
// by Document.Key(). It is shared across requests; the underlying LRU
// serializes access internally and is never held across network calls.
type EmbeddingCache struct {
	lru *lru.Cache[string, []float32]
}

// NewEmbeddingCache creates a cache with the given capacity.
func NewEmbeddingCache(capacity int) (*EmbeddingCache, error) {
	if capacity <= 0 {
		capacity = 4000
	}
	cache, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &EmbeddingCache{lru: cache}, nil
}

// Get returns the cached vector for key.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	if c == nil || key == "" {
		return nil, false
	}
	return c.lru.Get(key)
}

// Put stores a vector under key, evicting the least recently used entry
// when full.
func (c *EmbeddingCache) Put(key string, vector []float32) {
	if c == nil || key == "" || len(vector) == 0 {
		return
	}
	c.lru.Add(key, vector)
}

// Len returns the number of cached vectors.
func (c *EmbeddingCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
