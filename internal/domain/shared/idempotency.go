package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that were already handled.
// The gateway adapter uses it so a result posted twice by the payment
// frame reaches the session once.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release forgets a key so the next MarkProcessed for it succeeds.
	// Used when handling failed after the key was marked.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
