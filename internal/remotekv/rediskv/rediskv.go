// Package rediskv contains the Redis implementation of [remotekv.Interface].
package rediskv

import (
	"context"
	"fmt"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/redisutil"
	"github.com/gomodule/redigo/redis"
	"github.com/redron/dispatch/internal/remotekv"
)

// Redis-related constants.
const (
	// MinTTL is the minimum TTL that can be set when setting any TTL.
	MinTTL = 1 * time.Millisecond
)

// Additional Redis command and response names.
//
// TODO(a.garipov):  Use redisutil constants once they are added there.
const (
	cmdDEL     = "DEL"
	cmdINCR    = "INCR"
	cmdPEXPIRE = "PEXPIRE"
	cmdPING    = "PING"

	respPONG = "PONG"
)

// RedisKV is a Redis implementation of the [remotekv.Interface] interface.
//
// Note that Redis, by convention, uses the colon ":" character to delimit
// key namespaces, and the authoritative dispatcher keys already carry their
// namespaces, so no additional prefixing is performed here.
type RedisKV struct {
	metrics Metrics
	pool    redisutil.Pool
}

// RedisKVConfig is the configuration for the Redis-based
// [remotekv.Interface] implementation.  All fields must not be empty.
type RedisKVConfig struct {
	// Metrics collects the statistics of the Redis commands.  It must not be
	// nil.
	Metrics Metrics

	// Pool maintains a pool of Redis connections.  It must not be nil.
	Pool redisutil.Pool
}

// NewRedisKV returns a new *RedisKV.  c must not be nil.
func NewRedisKV(c *RedisKVConfig) (kv *RedisKV) {
	return &RedisKV{
		metrics: c.Metrics,
		pool:    c.Pool,
	}
}

// type check
var _ remotekv.Interface = (*RedisKV)(nil)

// Get implements the [remotekv.Interface] interface for *RedisKV.
func (kv *RedisKV) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	defer func() { err = errors.Annotate(err, "getting %q: %w", key) }()

	c, err := kv.pool.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, c.Close()) }()

	start := time.Now()
	val, err = redis.Bytes(c.Do(redisutil.CmdGET, key))
	switch {
	case err == nil:
		kv.metrics.ObserveOperation(ctx, redisutil.CmdGET, time.Since(start), true)

		return val, true, nil
	case errors.Is(err, redis.ErrNil):
		kv.metrics.ObserveOperation(ctx, redisutil.CmdGET, time.Since(start), true)

		return nil, false, nil
	default:
		kv.metrics.ObserveOperation(ctx, redisutil.CmdGET, time.Since(start), false)

		return nil, false, fmt.Errorf("get command: %w", err)
	}
}

// Set implements the [remotekv.Interface] interface for *RedisKV.  A zero
// ttl stores the key without an expiration; a positive ttl must not be less
// than [MinTTL].
func (kv *RedisKV) Set(
	ctx context.Context,
	key string,
	val []byte,
	ttl time.Duration,
) (err error) {
	defer func() { err = errors.Annotate(err, "setting %q: %w", key) }()

	if ttl != 0 && ttl < MinTTL {
		return fmt.Errorf("ttl: %w: must be no less than %s, got %s", errors.ErrOutOfRange, MinTTL, ttl)
	}

	c, err := kv.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, c.Close()) }()

	start := time.Now()
	if ttl == 0 {
		_, err = c.Do(redisutil.CmdSET, key, val)
	} else {
		_, err = c.Do(redisutil.CmdSET, key, val, redisutil.ParamPX, ttl.Milliseconds())
	}

	kv.metrics.ObserveOperation(ctx, redisutil.CmdSET, time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("set command: %w", err)
	}

	return nil
}

// Incr implements the [remotekv.Interface] interface for *RedisKV.
func (kv *RedisKV) Incr(ctx context.Context, key string) (n int64, err error) {
	defer func() { err = errors.Annotate(err, "incrementing %q: %w", key) }()

	c, err := kv.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, c.Close()) }()

	start := time.Now()
	n, err = redis.Int64(c.Do(cmdINCR, key))
	kv.metrics.ObserveOperation(ctx, cmdINCR, time.Since(start), err == nil)
	if err != nil {
		return 0, fmt.Errorf("incr command: %w", err)
	}

	return n, nil
}

// Expire implements the [remotekv.Interface] interface for *RedisKV.  ttl
// must not be less than [MinTTL].
func (kv *RedisKV) Expire(
	ctx context.Context,
	key string,
	ttl time.Duration,
) (ok bool, err error) {
	defer func() { err = errors.Annotate(err, "expiring %q: %w", key) }()

	if ttl < MinTTL {
		return false, fmt.Errorf("ttl: %w: must be no less than %s, got %s", errors.ErrOutOfRange, MinTTL, ttl)
	}

	c, err := kv.pool.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, c.Close()) }()

	start := time.Now()
	res, err := redis.Int64(c.Do(cmdPEXPIRE, key, ttl.Milliseconds()))
	kv.metrics.ObserveOperation(ctx, cmdPEXPIRE, time.Since(start), err == nil)
	if err != nil {
		return false, fmt.Errorf("pexpire command: %w", err)
	}

	return res == 1, nil
}

// Del implements the [remotekv.Interface] interface for *RedisKV.
func (kv *RedisKV) Del(ctx context.Context, keys ...string) (n int64, err error) {
	defer func() { err = errors.Annotate(err, "deleting %d keys: %w", len(keys)) }()

	if len(keys) == 0 {
		return 0, nil
	}

	c, err := kv.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, c.Close()) }()

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	start := time.Now()
	n, err = redis.Int64(c.Do(cmdDEL, args...))
	kv.metrics.ObserveOperation(ctx, cmdDEL, time.Since(start), err == nil)
	if err != nil {
		return 0, fmt.Errorf("del command: %w", err)
	}

	return n, nil
}

// Ping implements the [remotekv.Interface] interface for *RedisKV.
func (kv *RedisKV) Ping(ctx context.Context) (err error) {
	defer func() { err = errors.Annotate(err, "pinging redis: %w") }()

	c, err := kv.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, c.Close()) }()

	start := time.Now()
	resp, err := redis.String(c.Do(cmdPING))
	kv.metrics.ObserveOperation(ctx, cmdPING, time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("ping command: %w", err)
	}

	if resp != respPONG {
		return fmt.Errorf("ping command: unexpected response %q", resp)
	}

	return nil
}
