// Package cache provides the shared key/value store used for rate limiting.
package cache

import (
	"context"
	"time"
)

// KeyPrefix namespaces every key written by the application.
const KeyPrefix = "vexpense:"

// Store represents a shared cache interface used across the application.
type Store interface {
	// IncrementWithTTL bumps a fixed-window counter and returns the new count
	// and the time left in the window. The window starts at the first increment.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
