package analytics_test

import (
	"os"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/redron/dispatch/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
)

// testDSNEnvVarName is the environment variable name the presence and value
// of which define whether to run depending tests and against which Postgres
// database.
const testDSNEnvVarName = "TEST_POSTGRES_DSN"

// testTimeout is the common timeout for the integration tests.
const testTimeout = 5 * time.Second

// testSchema mirrors the analytics collection that the upstream ETL
// maintains in production.
const testSchema = `
	CREATE TABLE IF NOT EXISTS analytics (
		date DATE NOT NULL,
		domain TEXT NOT NULL,
		custom_key TEXT NOT NULL,
		custom_value TEXT NOT NULL,
		impressions BIGINT NOT NULL DEFAULT 0,
		clicks BIGINT NOT NULL DEFAULT 0,
		revenue DOUBLE PRECISION NOT NULL DEFAULT 0
	)`

// testDay is the analytics day for tests.
var testDay = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

// testAnalyticsRow is a single seeded analytics row.
type testAnalyticsRow struct {
	domain      string
	customValue string
	impressions int64
	clicks      int64
	revenue     float64
}

// seedRows is the analytics data seeded for tests.  On melhoresapps.net post
// 102 out-earns post 101 per impression; novidadeandroid.site has a lone
// post.
var seedRows = []*testAnalyticsRow{{
	domain:      "melhoresapps.net",
	customValue: "101",
	impressions: 1000,
	clicks:      50,
	revenue:     4,
}, {
	domain:      "melhoresapps.net",
	customValue: "102",
	impressions: 1000,
	clicks:      80,
	revenue:     9,
}, {
	domain:      "novidadeandroid.site",
	customValue: "201",
	impressions: 500,
	clicks:      10,
	revenue:     1,
}}

// newIntegrationRepo returns an analytics repository for tests or skips the
// test if [testDSNEnvVarName] is not set.  It ensures the collection and
// reseeds it with [seedRows] for [testDay].
func newIntegrationRepo(tb testing.TB) (r *analytics.SQL) {
	tb.Helper()

	dsn := os.Getenv(testDSNEnvVarName)
	if dsn == "" {
		tb.Skipf("skipping; %s is not set", testDSNEnvVarName)
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(tb, err)
	testutil.CleanupAndRequireSuccess(tb, db.Close)

	ctx := testutil.ContextWithTimeout(tb, testTimeout)
	_, err = db.ExecContext(ctx, testSchema)
	require.NoError(tb, err)

	_, err = db.ExecContext(ctx, `TRUNCATE analytics`)
	require.NoError(tb, err)

	const insert = `
		INSERT INTO analytics
			(date, domain, custom_key, custom_value, impressions, clicks, revenue)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, row := range seedRows {
		_, err = db.ExecContext(
			ctx,
			insert,
			testDay,
			row.domain,
			analytics.CustomKeyPostID,
			row.customValue,
			row.impressions,
			row.clicks,
			row.revenue,
		)
		require.NoError(tb, err)
	}

	return analytics.NewSQL(db)
}

// TestSQL_DomainPostStats is a test for [analytics.SQL.DomainPostStats].  It
// requires a Postgres server and must be run with [testDSNEnvVarName] set to
// its DSN.
func TestSQL_DomainPostStats(t *testing.T) {
	r := newIntegrationRepo(t)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	rows, err := r.DomainPostStats(ctx, &analytics.DailyStatsQuery{
		Start:     testDay,
		End:       testDay,
		Domains:   []string{"melhoresapps.net"},
		CustomKey: analytics.CustomKeyPostID,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	got := map[string]*analytics.Row{}
	for _, row := range rows {
		assert.Equal(t, "melhoresapps.net", row.Domain)
		assert.Equal(t, analytics.CustomKeyPostID, row.CustomKey)

		got[row.CustomValue] = row
	}

	require.Contains(t, got, "101")
	require.Contains(t, got, "102")

	assert.Equal(t, int64(1000), got["101"].Impressions)
	assert.InDelta(t, 4, got["101"].ECPM, 0.001)
	assert.InDelta(t, 9, got["102"].ECPM, 0.001)
}

// TestSQL_TotalStats is a test for [analytics.SQL.TotalStats].  It requires
// a Postgres server and must be run with [testDSNEnvVarName] set to its DSN.
func TestSQL_TotalStats(t *testing.T) {
	r := newIntegrationRepo(t)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	totals, err := r.TotalStats(ctx, testDay)
	require.NoError(t, err)
	require.NotNil(t, totals)

	assert.Equal(t, int64(2500), totals.Impressions)
	assert.Equal(t, int64(140), totals.Clicks)
	assert.InDelta(t, 14, totals.Revenue, 0.001)
	assert.InDelta(t, 5.6, totals.ECPM, 0.001)
	assert.InDelta(t, 5.6, totals.CTR, 0.001)

	// A day without data yields zeroes, not an error.
	ctx = testutil.ContextWithTimeout(t, testTimeout)
	totals, err = r.TotalStats(ctx, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NotNil(t, totals)

	assert.Zero(t, totals.Impressions)
	assert.Zero(t, totals.ECPM)
}

// TestSQL_DomainTraffic is a test for [analytics.SQL.DomainTraffic].  It
// requires a Postgres server and must be run with [testDSNEnvVarName] set to
// its DSN.
func TestSQL_DomainTraffic(t *testing.T) {
	r := newIntegrationRepo(t)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	traffic, err := r.DomainTraffic(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, traffic, 2)

	assert.Equal(t, "melhoresapps.net", traffic[0].Domain)
	assert.Equal(t, int64(2000), traffic[0].Impressions)
	assert.InDelta(t, 13, traffic[0].Revenue, 0.001)

	assert.Equal(t, "novidadeandroid.site", traffic[1].Domain)
}

// TestSQL_Distinct is a test for [analytics.SQL.Distinct].  It requires a
// Postgres server and must be run with [testDSNEnvVarName] set to its DSN.
func TestSQL_Distinct(t *testing.T) {
	r := newIntegrationRepo(t)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	vals, err := r.Distinct(ctx, "domain")
	require.NoError(t, err)

	assert.Equal(t, []string{"melhoresapps.net", "novidadeandroid.site"}, vals)

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	vals, err = r.Distinct(ctx, "custom_value")
	require.NoError(t, err)

	assert.Equal(t, []string{"101", "102", "201"}, vals)

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	_, err = r.Distinct(ctx, "revenue; DROP TABLE analytics")
	assert.ErrorIs(t, err, analytics.ErrBadField)
}
