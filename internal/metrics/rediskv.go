package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// RedisKV is the Prometheus-based implementation of the [rediskv.Metrics]
// interface.
type RedisKV struct {
	// opDuration is a histogram of the durations of the Redis commands,
	// partitioned by the command name.
	opDuration *prometheus.HistogramVec

	// errorsTotal is a counter of the failed Redis commands.
	errorsTotal prometheus.Counter
}

// NewRedisKV registers the Redis KV metrics in reg and returns a properly
// initialized [RedisKV].
func NewRedisKV(namespace string, reg prometheus.Registerer) (m *RedisKV, err error) {
	const (
		redisOpDuration = "redis_op_duration_seconds"
		redisErrors     = "redis_errors_total"
	)

	m = &RedisKV{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      redisOpDuration,
			Subsystem: subsystemRedisKV,
			Namespace: namespace,
			Help:      "Duration of a single redis command.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1},
		}, []string{"cmd"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      redisErrors,
			Subsystem: subsystemRedisKV,
			Namespace: namespace,
			Help:      "Total number of failed redis commands.",
		}),
	}

	var errs []error
	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   redisOpDuration,
		Value: m.opDuration,
	}, {
		Key:   redisErrors,
		Value: m.errorsTotal,
	}}

	for _, c := range collectors {
		err = reg.Register(c.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.Key, err))
		}
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveOperation implements the [rediskv.Metrics] interface for *RedisKV.
func (m *RedisKV) ObserveOperation(
	_ context.Context,
	cmd string,
	dur time.Duration,
	isSuccess bool,
) {
	m.opDuration.WithLabelValues(cmd).Observe(dur.Seconds())

	if !isSuccess {
		m.errorsTotal.Inc()
	}
}
