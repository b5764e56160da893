package redtest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/redron/dispatch/internal/remotekv"
)

// type check
var _ timeutil.Clock = (*Clock)(nil)

// Clock is a [timeutil.Clock] for tests.
type Clock struct {
	OnNow func() (now time.Time)
}

// Now implements the [timeutil.Clock] interface for *Clock.
func (c *Clock) Now() (now time.Time) {
	return c.OnNow()
}

// MemKV is an in-memory [remotekv.Interface] for tests.  TTLs are recorded
// but never enforced; inspect them with [MemKV.TTL].  The zero value is not
// usable; use [NewMemKV].
type MemKV struct {
	mu   *sync.Mutex
	vals map[string][]byte
	ttls map[string]time.Duration
}

// NewMemKV returns a new empty in-memory KV.
func NewMemKV() (kv *MemKV) {
	return &MemKV{
		mu:   &sync.Mutex{},
		vals: map[string][]byte{},
		ttls: map[string]time.Duration{},
	}
}

// type check
var _ remotekv.Interface = (*MemKV)(nil)

// Get implements the [remotekv.Interface] interface for *MemKV.
func (kv *MemKV) Get(_ context.Context, key string) (val []byte, ok bool, err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	val, ok = kv.vals[key]

	return val, ok, nil
}

// Set implements the [remotekv.Interface] interface for *MemKV.
func (kv *MemKV) Set(_ context.Context, key string, val []byte, ttl time.Duration) (err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.vals[key] = val
	kv.ttls[key] = ttl

	return nil
}

// Incr implements the [remotekv.Interface] interface for *MemKV.
func (kv *MemKV) Incr(_ context.Context, key string) (n int64, err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if val, ok := kv.vals[key]; ok {
		n, err = strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return 0, err
		}
	}

	n++
	kv.vals[key] = []byte(strconv.FormatInt(n, 10))

	return n, nil
}

// Expire implements the [remotekv.Interface] interface for *MemKV.
func (kv *MemKV) Expire(_ context.Context, key string, ttl time.Duration) (ok bool, err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, ok = kv.vals[key]; !ok {
		return false, nil
	}

	kv.ttls[key] = ttl

	return true, nil
}

// Del implements the [remotekv.Interface] interface for *MemKV.
func (kv *MemKV) Del(_ context.Context, keys ...string) (n int64, err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	for _, key := range keys {
		if _, ok := kv.vals[key]; ok {
			delete(kv.vals, key)
			delete(kv.ttls, key)
			n++
		}
	}

	return n, nil
}

// Ping implements the [remotekv.Interface] interface for *MemKV.
func (kv *MemKV) Ping(_ context.Context) (err error) {
	return nil
}

// Value returns the current value of key, if any.
func (kv *MemKV) Value(key string) (val []byte, ok bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	val, ok = kv.vals[key]

	return val, ok
}

// TTL returns the most recently recorded TTL of key, if any.
func (kv *MemKV) TTL(key string) (ttl time.Duration, ok bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	ttl, ok = kv.ttls[key]

	return ttl, ok
}
