package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WebSvc is the Prometheus-based implementation of the [websvc.Metrics]
// interface.
type WebSvc struct {
	// emergenciesTotal counts the dispatches that failed and fell back to the
	// emergency redirect.
	emergenciesTotal prometheus.Counter
}

// NewWebSvc registers the public HTTP service metrics in reg and returns a
// properly initialized [WebSvc].
func NewWebSvc(namespace string, reg prometheus.Registerer) (m *WebSvc, err error) {
	const emergenciesTotal = "emergencies_total"

	m = &WebSvc{
		emergenciesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      emergenciesTotal,
			Subsystem: subsystemWebSvc,
			Namespace: namespace,
			Help:      "Total number of emergency redirects.",
		}),
	}

	err = reg.Register(m.emergenciesTotal)
	if err != nil {
		return nil, fmt.Errorf("registering metrics %q: %w", emergenciesTotal, err)
	}

	return m, nil
}

// IncrementEmergencies implements the [websvc.Metrics] interface for *WebSvc.
func (m *WebSvc) IncrementEmergencies(_ context.Context) {
	m.emergenciesTotal.Inc()
}
