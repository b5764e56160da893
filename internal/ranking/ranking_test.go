package ranking_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/redron/dispatch/internal/analytics"
	"github.com/redron/dispatch/internal/bestlink"
	"github.com/redron/dispatch/internal/publisher"
	"github.com/redron/dispatch/internal/ranking"
	"github.com/redron/dispatch/internal/redtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTime is the frozen clock reading of the tests.
var testTime = time.Date(2025, 4, 1, 10, 30, 0, 0, time.UTC)

// newTestRefresher returns a refresher over the given analytics rows backed by
// kv.  Link-store writes are collected into upserts; deactivations are
// counted.
func newTestRefresher(
	tb testing.TB,
	rows []*analytics.Row,
	kv *redtest.MemKV,
) (r *ranking.Refresher, upserts *sync.Map, deactivations *int) {
	tb.Helper()

	upserts = &sync.Map{}
	deactivations = new(int)

	links := &redtest.LinkStorage{
		OnDeactivateAll: func(_ context.Context) (n int64, err error) {
			*deactivations++

			return int64(len(rows)), nil
		},
		OnUpsertActive: func(_ context.Context, domain, url string) (err error) {
			upserts.Store(domain, url)

			return nil
		},
	}

	r = ranking.NewRefresher(&ranking.RefresherConfig{
		Logger:  slogutil.NewDiscardLogger(),
		ErrColl: redtest.NewErrorCollector(),
		Metrics: ranking.EmptyMetrics{},
		Clock: &redtest.Clock{
			OnNow: func() (now time.Time) { return testTime },
		},
		Analytics: &redtest.Analytics{
			OnDomainPostStats: func(
				_ context.Context,
				q *analytics.DailyStatsQuery,
			) (got []*analytics.Row, err error) {
				assert.Equal(tb, analytics.CustomKeyPostID, q.CustomKey)
				assert.Equal(tb, publisher.Default().Hosts(), q.Domains)

				return rows, nil
			},
		},
		KV:       kv,
		Links:    links,
		Registry: publisher.Default(),
	})

	return r, upserts, deactivations
}

func TestRefresher_RefreshNow(t *testing.T) {
	t.Parallel()

	rows := []*analytics.Row{{
		Domain:      "useuapp.com",
		CustomValue: "101",
		ECPM:        2.5,
	}, {
		// A strictly greater eCPM replaces the winner.
		Domain:      "useuapp.com",
		CustomValue: "102",
		ECPM:        4.0,
	}, {
		// An equal eCPM keeps the first-seen winner.
		Domain:      "useuapp.com",
		CustomValue: "103",
		ECPM:        4.0,
	}, {
		Domain:      "melhoresapps.net",
		CustomValue: "7",
		ECPM:        9.0,
	}, {
		// Skipped, no post ID.
		Domain:      "appsdenoticias.com",
		CustomValue: "",
		ECPM:        100.0,
	}, {
		// Skipped, no domain.
		Domain:      "",
		CustomValue: "55",
		ECPM:        100.0,
	}}

	kv := redtest.NewMemKV()
	r, upserts, deactivations := newTestRefresher(t, rows, kv)

	ctx := testutil.ContextWithTimeout(t, redtest.Timeout)
	m, err := r.RefreshNow(ctx)
	require.NoError(t, err)

	wantMap := bestlink.Map{
		"useuapp.com": &bestlink.Link{
			URL:    "https://useuapp.com/?p=102",
			PostID: "102",
			ECPM:   4.0,
		},
		"melhoresapps.net": &bestlink.Link{
			URL:    "https://melhoresapps.net/?p=7",
			PostID: "7",
			ECPM:   9.0,
		},
	}
	assert.Equal(t, wantMap, m)

	mapData, ok := kv.Value(bestlink.KeyBestLinksMap)
	require.True(t, ok)

	gotMap := bestlink.Map{}
	require.NoError(t, json.Unmarshal(mapData, &gotMap))
	assert.Equal(t, wantMap, gotMap)

	ttl, ok := kv.TTL(bestlink.KeyBestLinksMap)
	require.True(t, ok)
	assert.Equal(t, bestlink.PublishTTL, ttl)

	listData, ok := kv.Value(bestlink.KeySortedDomains)
	require.True(t, ok)

	var gotList bestlink.List
	require.NoError(t, json.Unmarshal(listData, &gotList))
	assert.Equal(t, bestlink.List{{
		Domain: "melhoresapps.net",
		URL:    "https://melhoresapps.net/?p=7",
		PostID: "7",
		ECPM:   9.0,
	}, {
		Domain: "useuapp.com",
		URL:    "https://useuapp.com/?p=102",
		PostID: "102",
		ECPM:   4.0,
	}}, gotList)

	assert.Equal(t, 1, *deactivations)

	gotURL, ok := upserts.Load("useuapp.com")
	require.True(t, ok)
	assert.Equal(t, "https://useuapp.com/?p=102", gotURL)

	gotURL, ok = upserts.Load("melhoresapps.net")
	require.True(t, ok)
	assert.Equal(t, "https://melhoresapps.net/?p=7", gotURL)
}

func TestRefresher_RefreshNow_empty(t *testing.T) {
	t.Parallel()

	kv := redtest.NewMemKV()

	ctx := testutil.ContextWithTimeout(t, redtest.Timeout)
	prev := []byte(`{"useuapp.com":{"url":"u","postId":"1","ecpm":1}}`)
	require.NoError(t, kv.Set(ctx, bestlink.KeyBestLinksMap, prev, bestlink.PublishTTL))

	r, _, deactivations := newTestRefresher(t, nil, kv)

	m, err := r.RefreshNow(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)

	// The previously published entries are left intact, and the link store is
	// not touched.
	got, ok := kv.Value(bestlink.KeyBestLinksMap)
	require.True(t, ok)
	assert.Equal(t, prev, got)

	assert.Equal(t, 0, *deactivations)
}

func TestRefresher_RefreshNow_publishError(t *testing.T) {
	t.Parallel()

	const testError errors.Error = "test kv error"

	var setKeys []string
	kv := &redtest.KV{
		OnSet: func(_ context.Context, key string, _ []byte, _ time.Duration) (err error) {
			setKeys = append(setKeys, key)

			return testError
		},
	}

	r := ranking.NewRefresher(&ranking.RefresherConfig{
		Logger:  slogutil.NewDiscardLogger(),
		ErrColl: redtest.NewErrorCollector(),
		Metrics: ranking.EmptyMetrics{},
		Clock: &redtest.Clock{
			OnNow: func() (now time.Time) { return testTime },
		},
		Analytics: &redtest.Analytics{
			OnDomainPostStats: func(
				_ context.Context,
				_ *analytics.DailyStatsQuery,
			) (rows []*analytics.Row, err error) {
				return []*analytics.Row{{
					Domain:      "useuapp.com",
					CustomValue: "101",
					ECPM:        2.5,
				}}, nil
			},
		},
		KV: kv,
		Links: &redtest.LinkStorage{
			OnDeactivateAll: func(_ context.Context) (n int64, err error) {
				panic(testutil.UnexpectedCall())
			},
		},
		Registry: publisher.Default(),
	})

	ctx := testutil.ContextWithTimeout(t, redtest.Timeout)
	m, err := r.RefreshNow(ctx)
	assert.ErrorIs(t, err, testError)
	assert.Nil(t, m)

	// The second key is not written after the first write fails.
	assert.Equal(t, []string{bestlink.KeyBestLinksMap}, setKeys)
}

func TestRefresher_RefreshNow_reconcileError(t *testing.T) {
	t.Parallel()

	const testError errors.Error = "test store error"

	collectCh := make(chan error, 1)
	kv := redtest.NewMemKV()

	r := ranking.NewRefresher(&ranking.RefresherConfig{
		Logger: slogutil.NewDiscardLogger(),
		ErrColl: &redtest.ErrorCollector{
			OnCollect: func(_ context.Context, err error) {
				testutil.RequireSend(testutil.PanicT{}, collectCh, err, redtest.Timeout)
			},
		},
		Metrics: ranking.EmptyMetrics{},
		Clock: &redtest.Clock{
			OnNow: func() (now time.Time) { return testTime },
		},
		Analytics: &redtest.Analytics{
			OnDomainPostStats: func(
				_ context.Context,
				_ *analytics.DailyStatsQuery,
			) (rows []*analytics.Row, err error) {
				return []*analytics.Row{{
					Domain:      "useuapp.com",
					CustomValue: "101",
					ECPM:        2.5,
				}}, nil
			},
		},
		KV: kv,
		Links: &redtest.LinkStorage{
			OnDeactivateAll: func(_ context.Context) (n int64, err error) {
				return 0, testError
			},
		},
		Registry: publisher.Default(),
	})

	ctx := testutil.ContextWithTimeout(t, redtest.Timeout)
	m, err := r.RefreshNow(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Reconciliation failures are collected but never fail the refresh.
	gotErr, ok := testutil.RequireReceive(t, collectCh, redtest.Timeout)
	require.True(t, ok)
	assert.ErrorIs(t, gotErr, testError)

	_, published := kv.Value(bestlink.KeyBestLinksMap)
	assert.True(t, published)
}

func TestBestPostURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://a.example/?p=42", ranking.BestPostURL("a.example", "42"))
	assert.Equal(
		t,
		"https://a.example/?p=a%2Fb+c",
		ranking.BestPostURL("a.example", "a/b c"),
	)
}

func TestNewCronSchedule(t *testing.T) {
	t.Parallel()

	s, err := ranking.NewCronSchedule(ranking.DefaultCronSpec)
	require.NoError(t, err)

	// From 10:30:00 the next firing of "30 * * * *" is 11:30:00.
	assert.Equal(t, 1*time.Hour, s.UntilNext(testTime))

	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 30*time.Minute, s.UntilNext(now))

	_, err = ranking.NewCronSchedule("not a cron spec")
	assert.Error(t, err)
}
