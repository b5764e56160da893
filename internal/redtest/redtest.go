// Package redtest contains simple mocks for common interfaces and other test
// utilities.
package redtest

import (
	"context"
	"time"

	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/redron/dispatch/internal/analytics"
	"github.com/redron/dispatch/internal/bestlink"
	"github.com/redron/dispatch/internal/clickstat"
	"github.com/redron/dispatch/internal/errcoll"
	"github.com/redron/dispatch/internal/linkstore"
	"github.com/redron/dispatch/internal/remotekv"
)

// Timeout is the common timeout for tests.
const Timeout = 1 * time.Second

// Interface Mocks
//
// Keep entities in alphabetic order.

// type check
var _ analytics.Interface = (*Analytics)(nil)

// Analytics is an [analytics.Interface] for tests.
type Analytics struct {
	OnDomainPostStats func(
		ctx context.Context,
		q *analytics.DailyStatsQuery,
	) (rows []*analytics.Row, err error)
	OnTotalStats    func(ctx context.Context, day time.Time) (t *analytics.Totals, err error)
	OnDomainTraffic func(
		ctx context.Context,
		day time.Time,
	) (traffic []*analytics.DomainTotals, err error)
	OnDistinct func(ctx context.Context, field string) (vals []string, err error)
}

// DomainPostStats implements the [analytics.Interface] interface for
// *Analytics.
func (a *Analytics) DomainPostStats(
	ctx context.Context,
	q *analytics.DailyStatsQuery,
) (rows []*analytics.Row, err error) {
	return a.OnDomainPostStats(ctx, q)
}

// TotalStats implements the [analytics.Interface] interface for *Analytics.
func (a *Analytics) TotalStats(
	ctx context.Context,
	day time.Time,
) (t *analytics.Totals, err error) {
	return a.OnTotalStats(ctx, day)
}

// DomainTraffic implements the [analytics.Interface] interface for
// *Analytics.
func (a *Analytics) DomainTraffic(
	ctx context.Context,
	day time.Time,
) (traffic []*analytics.DomainTotals, err error) {
	return a.OnDomainTraffic(ctx, day)
}

// Distinct implements the [analytics.Interface] interface for *Analytics.
func (a *Analytics) Distinct(ctx context.Context, field string) (vals []string, err error) {
	return a.OnDistinct(ctx, field)
}

// type check
var _ clickstat.Recorder = (*ClickRecorder)(nil)

// ClickRecorder is a [clickstat.Recorder] for tests.
type ClickRecorder struct {
	OnRecord func(ctx context.Context, linkID string) (c *clickstat.Counter, err error)
	OnTotals func(ctx context.Context) (s *clickstat.Summary, err error)
}

// Record implements the [clickstat.Recorder] interface for *ClickRecorder.
func (r *ClickRecorder) Record(
	ctx context.Context,
	linkID string,
) (c *clickstat.Counter, err error) {
	return r.OnRecord(ctx, linkID)
}

// Totals implements the [clickstat.Recorder] interface for *ClickRecorder.
func (r *ClickRecorder) Totals(ctx context.Context) (s *clickstat.Summary, err error) {
	return r.OnTotals(ctx)
}

// type check
var _ errcoll.Interface = (*ErrorCollector)(nil)

// ErrorCollector is an [errcoll.Interface] for tests.
type ErrorCollector struct {
	OnCollect func(ctx context.Context, err error)
}

// Collect implements the [errcoll.Interface] interface for *ErrorCollector.
func (c *ErrorCollector) Collect(ctx context.Context, err error) {
	c.OnCollect(ctx, err)
}

// NewErrorCollector returns a new *ErrorCollector all methods of which panic.
func NewErrorCollector() (c *ErrorCollector) {
	return &ErrorCollector{
		OnCollect: func(_ context.Context, err error) {
			panic(testutil.UnexpectedCall(err))
		},
	}
}

// type check
var _ remotekv.Interface = (*KV)(nil)

// KV is a [remotekv.Interface] for tests.
type KV struct {
	OnGet    func(ctx context.Context, key string) (val []byte, ok bool, err error)
	OnSet    func(ctx context.Context, key string, val []byte, ttl time.Duration) (err error)
	OnIncr   func(ctx context.Context, key string) (n int64, err error)
	OnExpire func(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)
	OnDel    func(ctx context.Context, keys ...string) (n int64, err error)
	OnPing   func(ctx context.Context) (err error)
}

// Get implements the [remotekv.Interface] interface for *KV.
func (kv *KV) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	return kv.OnGet(ctx, key)
}

// Set implements the [remotekv.Interface] interface for *KV.
func (kv *KV) Set(
	ctx context.Context,
	key string,
	val []byte,
	ttl time.Duration,
) (err error) {
	return kv.OnSet(ctx, key, val, ttl)
}

// Incr implements the [remotekv.Interface] interface for *KV.
func (kv *KV) Incr(ctx context.Context, key string) (n int64, err error) {
	return kv.OnIncr(ctx, key)
}

// Expire implements the [remotekv.Interface] interface for *KV.
func (kv *KV) Expire(
	ctx context.Context,
	key string,
	ttl time.Duration,
) (ok bool, err error) {
	return kv.OnExpire(ctx, key, ttl)
}

// Del implements the [remotekv.Interface] interface for *KV.
func (kv *KV) Del(ctx context.Context, keys ...string) (n int64, err error) {
	return kv.OnDel(ctx, keys...)
}

// Ping implements the [remotekv.Interface] interface for *KV.
func (kv *KV) Ping(ctx context.Context) (err error) {
	return kv.OnPing(ctx)
}

// type check
var _ linkstore.Storage = (*LinkStorage)(nil)

// LinkStorage is a [linkstore.Storage] for tests.
type LinkStorage struct {
	OnDeactivateAll func(ctx context.Context) (n int64, err error)
	OnUpsertActive  func(ctx context.Context, domain, url string) (err error)
	OnAll           func(ctx context.Context) (links []*linkstore.Link, err error)
}

// DeactivateAll implements the [linkstore.Storage] interface for
// *LinkStorage.
func (s *LinkStorage) DeactivateAll(ctx context.Context) (n int64, err error) {
	return s.OnDeactivateAll(ctx)
}

// UpsertActive implements the [linkstore.Storage] interface for *LinkStorage.
func (s *LinkStorage) UpsertActive(ctx context.Context, domain, url string) (err error) {
	return s.OnUpsertActive(ctx, domain, url)
}

// All implements the [linkstore.Storage] interface for *LinkStorage.
func (s *LinkStorage) All(ctx context.Context) (links []*linkstore.Link, err error) {
	return s.OnAll(ctx)
}

// type check
var _ service.Refresher = (*Refresher)(nil)

// Refresher is a [service.Refresher] for tests.
type Refresher struct {
	OnRefresh func(ctx context.Context) (err error)
}

// Refresh implements the [service.Refresher] interface for *Refresher.
func (r *Refresher) Refresh(ctx context.Context) (err error) {
	return r.OnRefresh(ctx)
}

// type check
var _ bestlink.Source = (*Source)(nil)

// Source is a [bestlink.Source] for tests.
type Source struct {
	OnMap  func(ctx context.Context) (m bestlink.Map)
	OnList func(ctx context.Context) (l bestlink.List)
}

// Map implements the [bestlink.Source] interface for *Source.
func (s *Source) Map(ctx context.Context) (m bestlink.Map) {
	return s.OnMap(ctx)
}

// List implements the [bestlink.Source] interface for *Source.
func (s *Source) List(ctx context.Context) (l bestlink.List) {
	return s.OnList(ctx)
}
