// Package metrics contains the prometheus implementations of the metrics
// interfaces of the dispatcher packages.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// constants with the namespace and the subsystem names that we use in our
// prometheus metrics.
const (
	namespace = "redron"

	subsystemApplication = "app"
	subsystemBestLink    = "bestlink"
	subsystemClickStat   = "clickstat"
	subsystemDispatch    = "dispatch"
	subsystemRanking     = "ranking"
	subsystemRedisKV     = "rediskv"
	subsystemWebSvc      = "websvc"
)

// Namespace returns the namespace of the dispatcher prometheus metrics.
func Namespace() (ns string) {
	return namespace
}

// SetUpGauge registers and sets the gauge signalling that the server has been
// started.
func SetUpGauge(reg prometheus.Registerer, version, branch, committime, revision, goversion string) (err error) {
	upGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "up",
		Namespace: namespace,
		Subsystem: subsystemApplication,
		Help: `A metric with a constant '1' value labeled by ` +
			`version and goversion from which the program was built.`,
		ConstLabels: prometheus.Labels{
			"version":    version,
			"branch":     branch,
			"committime": committime,
			"revision":   revision,
			"goversion":  goversion,
		},
	})

	err = reg.Register(upGauge)
	if err != nil {
		return fmt.Errorf("registering metrics %q: %w", "up", err)
	}

	upGauge.Set(1)

	return nil
}

// SetStatusGauge is a helper function that automatically checks if there's an
// error and sets the gauge to either 1 (success) or 0 (error).
func SetStatusGauge(gauge prometheus.Gauge, err error) {
	if err == nil {
		gauge.Set(1)
	} else {
		gauge.Set(0)
	}
}

// BoolString returns "1" if cond is true and "0" otherwise.
func BoolString(cond bool) (s string) {
	if cond {
		return "1"
	}

	return "0"
}
