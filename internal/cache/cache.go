// Package cache provides the response-cache collaborator for the LLM gateway.
// The gateway treats the cache as best-effort: an absent or failing cache
// degrades to a miss, never to an error.
package cache

import (
	"context"
	"time"
)

// Store is a TTL'd key-value store for serialized gateway responses.
type Store interface {
	// Get returns the cached payload for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool)
	// Set stores payload under key for ttl. Failures are swallowed.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Flush discards all entries.
	Flush(ctx context.Context)
}

// Noop is the default Store when no cache is configured. Every lookup misses.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Noop) Set(context.Context, string, []byte, time.Duration) {}

func (Noop) Flush(context.Context) {}
