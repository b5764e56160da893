package metrics_test

import (
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redron/dispatch/internal/metrics"
	"github.com/redron/dispatch/internal/redtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_register(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	ctx := testutil.ContextWithTimeout(t, redtest.Timeout)

	bl, err := metrics.NewBestLink(metrics.Namespace(), reg)
	require.NoError(t, err)
	bl.IncrementLookups(ctx, true)
	bl.IncrementStale(ctx)

	cs, err := metrics.NewClickStat(metrics.Namespace(), reg)
	require.NoError(t, err)
	cs.ObserveRecord(ctx, 1*time.Millisecond, true)

	d, err := metrics.NewDispatch(metrics.Namespace(), reg)
	require.NoError(t, err)
	d.ObserveDispatch(ctx, "best", 1*time.Millisecond)

	rk, err := metrics.NewRanking(metrics.Namespace(), reg)
	require.NoError(t, err)
	rk.SetStatus(ctx, nil)
	rk.ObserveRefresh(ctx, 1*time.Second)
	rk.SetDomainsRanked(ctx, 4)
	rk.IncrementReconcileErrors(ctx)

	kv, err := metrics.NewRedisKV(metrics.Namespace(), reg)
	require.NoError(t, err)
	kv.ObserveOperation(ctx, "GET", 1*time.Millisecond, false)

	ws, err := metrics.NewWebSvc(metrics.Namespace(), reg)
	require.NoError(t, err)
	ws.IncrementEmergencies(ctx)

	require.NoError(t, metrics.SetUpGauge(
		reg,
		"v1.0.0",
		"main",
		"now",
		"rev",
		"go1.24",
	))

	// Double registration must fail.
	_, err = metrics.NewWebSvc(metrics.Namespace(), reg)
	assert.Error(t, err)
}
