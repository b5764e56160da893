package metrics

import (
	"context"
	"fmt"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// BestLink is the Prometheus-based implementation of the [bestlink.Metrics]
// interface.
type BestLink struct {
	// lookupsHit and lookupsMiss count the directory lookups partitioned by
	// whether the fresh process-local copy served them.
	lookupsHit  prometheus.Counter
	lookupsMiss prometheus.Counter

	// staleTotal counts the lookups that fell back to the last known copy.
	staleTotal prometheus.Counter
}

// NewBestLink registers the link directory metrics in reg and returns a
// properly initialized [BestLink].
func NewBestLink(namespace string, reg prometheus.Registerer) (m *BestLink, err error) {
	const (
		lookupsTotal = "directory_lookups_total"
		staleTotal   = "directory_stale_total"
	)

	lookupsCV := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      lookupsTotal,
		Subsystem: subsystemBestLink,
		Namespace: namespace,
		Help:      "Total number of link directory lookups by cache hit.",
	}, []string{"hit"})

	m = &BestLink{
		lookupsHit:  lookupsCV.WithLabelValues("1"),
		lookupsMiss: lookupsCV.WithLabelValues("0"),
		staleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      staleTotal,
			Subsystem: subsystemBestLink,
			Namespace: namespace,
			Help:      "Total number of lookups served from the stale copy.",
		}),
	}

	var errs []error
	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   lookupsTotal,
		Value: lookupsCV,
	}, {
		Key:   staleTotal,
		Value: m.staleTotal,
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

// IncrementLookups implements the [bestlink.Metrics] interface for *BestLink.
func (m *BestLink) IncrementLookups(_ context.Context, hit bool) {
	if hit {
		m.lookupsHit.Inc()
	} else {
		m.lookupsMiss.Inc()
	}
}

// IncrementStale implements the [bestlink.Metrics] interface for *BestLink.
func (m *BestLink) IncrementStale(_ context.Context) {
	m.staleTotal.Inc()
}
