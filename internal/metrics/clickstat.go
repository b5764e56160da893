package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// ClickStat is the Prometheus-based implementation of the [clickstat.Metrics]
// interface.
type ClickStat struct {
	// recordDuration is a histogram of the durations of the click upserts.
	recordDuration prometheus.Histogram

	// errorsTotal is a counter of the failed click upserts.
	errorsTotal prometheus.Counter
}

// NewClickStat registers the click recorder metrics in reg and returns a
// properly initialized [ClickStat].
func NewClickStat(namespace string, reg prometheus.Registerer) (m *ClickStat, err error) {
	const (
		recordDuration = "record_duration_seconds"
		recordErrors   = "record_errors_total"
	)

	m = &ClickStat{
		recordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      recordDuration,
			Subsystem: subsystemClickStat,
			Namespace: namespace,
			Help:      "Duration of a single click counter upsert.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1},
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      recordErrors,
			Subsystem: subsystemClickStat,
			Namespace: namespace,
			Help:      "Total number of failed click counter upserts.",
		}),
	}

	var errs []error
	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   recordDuration,
		Value: m.recordDuration,
	}, {
		Key:   recordErrors,
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

// ObserveRecord implements the [clickstat.Metrics] interface for *ClickStat.
func (m *ClickStat) ObserveRecord(_ context.Context, dur time.Duration, isSuccess bool) {
	m.recordDuration.Observe(dur.Seconds())

	if !isSuccess {
		m.errorsTotal.Inc()
	}
}
