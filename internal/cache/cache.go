// Package cache holds the Redis-backed stores: user carts and idempotency keys.
package cache

import (
	"context"
)

// IdempotencyStore deduplicates requests carrying the same idempotency key.
// Keys are namespaced by scope, e.g. the acting user.
type IdempotencyStore interface {
	// TryLock claims key for one in-flight request. It reports false when the
	// key is already claimed.
	TryLock(ctx context.Context, scope, key string) (bool, error)

	// Unlock drops a claim whose request failed, so the key can be retried.
	Unlock(ctx context.Context, scope, key string) error

	// Remember stores the result reference of a completed request.
	Remember(ctx context.Context, scope, key, value string) error

	// Recall returns the stored result reference, if any.
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}
