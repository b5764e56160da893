package linkstore_test

import (
	"os"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/redron/dispatch/internal/linkstore"
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

// Test constants.
const (
	testDomain = "melhoresapps.net"
	testURL    = "https://melhoresapps.net/melhor-app?post=101"
)

// newIntegrationDB returns a database handle for tests or skips the test if
// [testDSNEnvVarName] is not set.  It ensures the schema and empties the
// collection.
func newIntegrationDB(tb testing.TB) (db *sqlx.DB) {
	tb.Helper()

	dsn := os.Getenv(testDSNEnvVarName)
	if dsn == "" {
		tb.Skipf("skipping; %s is not set", testDSNEnvVarName)
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(tb, err)
	testutil.CleanupAndRequireSuccess(tb, db.Close)

	ctx := testutil.ContextWithTimeout(tb, testTimeout)
	_, err = db.ExecContext(ctx, linkstore.Schema)
	require.NoError(tb, err)

	_, err = db.ExecContext(ctx, `TRUNCATE redirects_links`)
	require.NoError(tb, err)

	return db
}

// TestSQL is a test for the Postgres-backed link storage.  It requires a
// Postgres server and must be run with [testDSNEnvVarName] set to its DSN.
func TestSQL(t *testing.T) {
	s := linkstore.NewSQL(newIntegrationDB(t))

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	err := s.UpsertActive(ctx, testDomain, testURL)
	require.NoError(t, err)

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	links, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)

	assert.Equal(t, testDomain, links[0].Domain)
	assert.Equal(t, testURL, links[0].URL)
	assert.True(t, links[0].Status)

	// A repeated upsert converges on the same record.
	ctx = testutil.ContextWithTimeout(t, testTimeout)
	err = s.UpsertActive(ctx, testDomain, testURL)
	require.NoError(t, err)

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	links, err = s.All(ctx)
	require.NoError(t, err)

	assert.Len(t, links, 1)
}

// TestSQL_DeactivateAll is a test for [linkstore.SQL.DeactivateAll].  It
// requires a Postgres server and must be run with [testDSNEnvVarName] set to
// its DSN.
func TestSQL_DeactivateAll(t *testing.T) {
	s := linkstore.NewSQL(newIntegrationDB(t))

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, s.UpsertActive(ctx, testDomain, testURL))
	require.NoError(t, s.UpsertActive(ctx, "novidadeandroid.site", testURL))

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	n, err := s.DeactivateAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), n)

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	links, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)

	for _, l := range links {
		assert.False(t, l.Status)
	}

	// Reactivation through the upsert path.
	ctx = testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, s.UpsertActive(ctx, testDomain, testURL))

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	links, err = s.All(ctx)
	require.NoError(t, err)

	active := 0
	for _, l := range links {
		if l.Status {
			active++
		}
	}

	assert.Equal(t, 1, active)

	ctx = testutil.ContextWithTimeout(t, testTimeout)
	n, err = s.DeactivateAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), n)
}
