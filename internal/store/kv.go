// Package store defines the shared key-value contract behind the rate
// limiter and the availability cache. The same contract is served by an
// in-process map for single-instance deployments and by Redis when several
// instances must agree on counters; callers cannot tell the two apart.
package store

import (
	"context"
	"time"
)

// KV is the injected store abstraction. All operations are atomic with
// respect to concurrent callers of the same key.
type KV interface {
	// Get returns the value for key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for ttl (ttl <= 0 means no expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only when key is absent (first writer wins) and
	// reports whether this caller was the writer.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// IncrWindow increments the fixed-window counter for key, starting a new
	// window of the given length when none is active. It returns the count
	// within the current window and how long until the window resets.
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}
