// Package remotekv contains the shared key-value cache interfaces, helpers,
// and implementations.
//
// The dispatcher keeps all of its cross-replica state in the shared cache:
// the published rankings, the per-visitor cursors, the round-robin counter,
// and the anti-replay memos.
package remotekv

import (
	"context"
	"time"
)

// Interface is the shared key-value cache interface.
type Interface interface {
	// Get returns val by key from the cache.  ok is true if val by key
	// exists.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)

	// Set sets val into the cache by key.  If ttl is positive, the key
	// expires after it; a zero ttl means the key does not expire.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) (err error)

	// Incr atomically increments the integer value stored by key, creating
	// it as 1 if it doesn't exist, and returns the post-increment value.
	Incr(ctx context.Context, key string) (n int64, err error)

	// Expire sets the remaining time-to-live of key to ttl.  ok is false if
	// the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)

	// Del removes the given keys and returns the number of keys that were
	// actually removed.
	Del(ctx context.Context, keys ...string) (n int64, err error)

	// Ping checks that the cache is reachable.
	Ping(ctx context.Context) (err error)
}

// Empty is the [Interface] implementation that does nothing.
type Empty struct{}

// type check
var _ Interface = Empty{}

// Get implements the [Interface] interface for Empty.  ok is always false.
func (Empty) Get(_ context.Context, _ string) (val []byte, ok bool, err error) {
	return val, false, nil
}

// Set implements the [Interface] interface for Empty.
func (Empty) Set(_ context.Context, _ string, _ []byte, _ time.Duration) (err error) {
	return nil
}

// Incr implements the [Interface] interface for Empty.  n is always zero.
func (Empty) Incr(_ context.Context, _ string) (n int64, err error) {
	return 0, nil
}

// Expire implements the [Interface] interface for Empty.  ok is always
// false.
func (Empty) Expire(_ context.Context, _ string, _ time.Duration) (ok bool, err error) {
	return false, nil
}

// Del implements the [Interface] interface for Empty.  n is always zero.
func (Empty) Del(_ context.Context, _ ...string) (n int64, err error) {
	return 0, nil
}

// Ping implements the [Interface] interface for Empty.
func (Empty) Ping(_ context.Context) (err error) {
	return nil
}
