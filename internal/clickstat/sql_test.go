package clickstat_test

import (
	"os"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/redron/dispatch/internal/clickstat"
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

// testLinkID is a link identifier for tests.
const testLinkID = "best_melhoresapps.net_101"

// newIntegrationRecorder returns a click recorder for tests or skips the test
// if [testDSNEnvVarName] is not set.  It ensures the schema and empties the
// collection.
func newIntegrationRecorder(tb testing.TB) (r *clickstat.SQL) {
	tb.Helper()

	dsn := os.Getenv(testDSNEnvVarName)
	if dsn == "" {
		tb.Skipf("skipping; %s is not set", testDSNEnvVarName)
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(tb, err)
	testutil.CleanupAndRequireSuccess(tb, db.Close)

	ctx := testutil.ContextWithTimeout(tb, testTimeout)
	_, err = db.ExecContext(ctx, clickstat.Schema)
	require.NoError(tb, err)

	_, err = db.ExecContext(ctx, `TRUNCATE redirects_clicks`)
	require.NoError(tb, err)

	return clickstat.NewSQL(&clickstat.SQLConfig{
		DB:      db,
		Metrics: clickstat.EmptyMetrics{},
	})
}

// TestSQL_Record is a test for [clickstat.SQL.Record].  It requires a
// Postgres server and must be run with [testDSNEnvVarName] set to its DSN.
func TestSQL_Record(t *testing.T) {
	r := newIntegrationRecorder(t)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	c, err := r.Record(ctx, testLinkID)
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, testLinkID, c.LinkID)
	assert.Equal(t, int64(1), c.Count)
	assert.False(t, c.CreatedAt.IsZero())

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	c, err = r.Record(ctx, testLinkID)
	require.NoError(t, err)

	assert.Equal(t, int64(2), c.Count)
}

// TestSQL_Totals is a test for [clickstat.SQL.Totals].  It requires a
// Postgres server and must be run with [testDSNEnvVarName] set to its DSN.
func TestSQL_Totals(t *testing.T) {
	r := newIntegrationRecorder(t)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	s, err := r.Totals(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Zero(t, s.Links)
	assert.Zero(t, s.Total)
	assert.Empty(t, s.Top)

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	_, err = r.Record(ctx, testLinkID)
	require.NoError(t, err)

	_, err = r.Record(ctx, testLinkID)
	require.NoError(t, err)

	_, err = r.Record(ctx, "fallback_novidadeandroid.site")
	require.NoError(t, err)

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	s, err = r.Totals(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, int64(2), s.Links)
	assert.Equal(t, int64(3), s.Total)

	require.Len(t, s.Top, 2)

	assert.Equal(t, testLinkID, s.Top[0].LinkID)
	assert.Equal(t, int64(2), s.Top[0].Count)
}
