package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Ranking is the Prometheus-based implementation of the [ranking.Metrics]
// interface.
type Ranking struct {
	// lastRefreshStatus is 1 when the most recent refresh succeeded and 0
	// otherwise.
	lastRefreshStatus prometheus.Gauge

	// lastRefreshTime is the timestamp of the most recent refresh attempt.
	lastRefreshTime prometheus.Gauge

	// refreshDuration is a histogram of the refresh durations.
	refreshDuration prometheus.Histogram

	// domainsRanked is the number of domains in the published list.
	domainsRanked prometheus.Gauge

	// reconcileErrorsTotal counts the failed link-store reconciliation
	// writes.
	reconcileErrorsTotal prometheus.Counter
}

// NewRanking registers the ranking refresher metrics in reg and returns a
// properly initialized [Ranking].
func NewRanking(namespace string, reg prometheus.Registerer) (m *Ranking, err error) {
	const (
		lastRefreshStatus = "last_refresh_status"
		lastRefreshTime   = "last_refresh_timestamp_seconds"
		refreshDuration   = "refresh_duration_seconds"
		domainsRanked     = "domains_ranked"
		reconcileErrors   = "reconcile_errors_total"
	)

	m = &Ranking{
		lastRefreshStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      lastRefreshStatus,
			Subsystem: subsystemRanking,
			Namespace: namespace,
			Help:      "Status of the most recent refresh, 1 for a success.",
		}),
		lastRefreshTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      lastRefreshTime,
			Subsystem: subsystemRanking,
			Namespace: namespace,
			Help:      "Timestamp of the most recent refresh attempt.",
		}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      refreshDuration,
			Subsystem: subsystemRanking,
			Namespace: namespace,
			Help:      "Duration of a single ranking refresh.",
			Buckets:   []float64{0.01, 0.1, 1, 10, 60},
		}),
		domainsRanked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      domainsRanked,
			Subsystem: subsystemRanking,
			Namespace: namespace,
			Help:      "Number of domains in the published ranking.",
		}),
		reconcileErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      reconcileErrors,
			Subsystem: subsystemRanking,
			Namespace: namespace,
			Help:      "Total number of failed link collection writes.",
		}),
	}

	var errs []error
	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   lastRefreshStatus,
		Value: m.lastRefreshStatus,
	}, {
		Key:   lastRefreshTime,
		Value: m.lastRefreshTime,
	}, {
		Key:   refreshDuration,
		Value: m.refreshDuration,
	}, {
		Key:   domainsRanked,
		Value: m.domainsRanked,
	}, {
		Key:   reconcileErrors,
		Value: m.reconcileErrorsTotal,
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

// SetStatus implements the [ranking.Metrics] interface for *Ranking.
func (m *Ranking) SetStatus(_ context.Context, err error) {
	SetStatusGauge(m.lastRefreshStatus, err)
	m.lastRefreshTime.SetToCurrentTime()
}

// ObserveRefresh implements the [ranking.Metrics] interface for *Ranking.
func (m *Ranking) ObserveRefresh(_ context.Context, dur time.Duration) {
	m.refreshDuration.Observe(dur.Seconds())
}

// SetDomainsRanked implements the [ranking.Metrics] interface for *Ranking.
func (m *Ranking) SetDomainsRanked(_ context.Context, n int) {
	m.domainsRanked.Set(float64(n))
}

// IncrementReconcileErrors implements the [ranking.Metrics] interface for
// *Ranking.
func (m *Ranking) IncrementReconcileErrors(_ context.Context) {
	m.reconcileErrorsTotal.Inc()
}
