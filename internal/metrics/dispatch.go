package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch is the Prometheus-based implementation of the [dispatch.Metrics]
// interface.
type Dispatch struct {
	// dispatchesTotal counts the served dispatches partitioned by the
	// selection kind.
	dispatchesTotal *prometheus.CounterVec

	// duration is a histogram of the dispatch durations.
	duration prometheus.Histogram
}

// NewDispatch registers the dispatch engine metrics in reg and returns a
// properly initialized [Dispatch].
func NewDispatch(namespace string, reg prometheus.Registerer) (m *Dispatch, err error) {
	const (
		dispatchesTotal  = "dispatches_total"
		dispatchDuration = "duration_seconds"
	)

	m = &Dispatch{
		dispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      dispatchesTotal,
			Subsystem: subsystemDispatch,
			Namespace: namespace,
			Help:      "Total number of dispatches by selection kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      dispatchDuration,
			Subsystem: subsystemDispatch,
			Namespace: namespace,
			Help:      "Duration of a single dispatch.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1},
		}),
	}

	var errs []error
	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   dispatchesTotal,
		Value: m.dispatchesTotal,
	}, {
		Key:   dispatchDuration,
		Value: m.duration,
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

// ObserveDispatch implements the [dispatch.Metrics] interface for *Dispatch.
func (m *Dispatch) ObserveDispatch(_ context.Context, kind string, dur time.Duration) {
	m.dispatchesTotal.WithLabelValues(kind).Inc()
	m.duration.Observe(dur.Seconds())
}
