// Package ranking implements the ranking refresher: the scheduled job that
// determines, per publisher domain, the post currently producing the highest
// eCPM, and publishes the result to the shared cache for the dispatch engine.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"

	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/redron/dispatch/internal/analytics"
	"github.com/redron/dispatch/internal/bestlink"
	"github.com/redron/dispatch/internal/errcoll"
	"github.com/redron/dispatch/internal/linkstore"
	"github.com/redron/dispatch/internal/publisher"
	"github.com/redron/dispatch/internal/remotekv"
)

// Refresher computes and publishes the rankings.  It is the only writer of
// the published cache keys and of the link-store status field; at most one
// replica, the primary, runs it.
type Refresher struct {
	logger    *slog.Logger
	errColl   errcoll.Interface
	metrics   Metrics
	clock     timeutil.Clock
	analytics analytics.Interface
	kv        remotekv.Interface
	links     linkstore.Storage
	registry  *publisher.Registry
}

// RefresherConfig is the configuration structure for the ranking refresher.
// All fields must not be empty.
type RefresherConfig struct {
	// Logger is used to log the operation of the refresher.
	Logger *slog.Logger

	// ErrColl is used to collect non-critical errors, such as link-store
	// reconciliation failures.
	ErrColl errcoll.Interface

	// Metrics collects the statistics of the refreshes.
	Metrics Metrics

	// Clock is used to determine the current analytics day.
	Clock timeutil.Clock

	// Analytics is the read-only analytics repository.
	Analytics analytics.Interface

	// KV is the shared cache that the rankings are published to.
	KV remotekv.Interface

	// Links is the persisted best-link collection that is reconciled after a
	// successful publication.
	Links linkstore.Storage

	// Registry is the registry of publisher domains to rank.
	Registry *publisher.Registry
}

// NewRefresher creates a new ranking refresher.  c must not be nil.
func NewRefresher(c *RefresherConfig) (r *Refresher) {
	return &Refresher{
		logger:    c.Logger,
		errColl:   c.ErrColl,
		metrics:   c.Metrics,
		clock:     c.Clock,
		analytics: c.Analytics,
		kv:        c.KV,
		links:     c.Links,
		registry:  c.Registry,
	}
}

// type check
var _ service.Refresher = (*Refresher)(nil)

// Refresh implements the [service.Refresher] interface for *Refresher.
func (r *Refresher) Refresh(ctx context.Context) (err error) {
	_, err = r.RefreshNow(ctx)

	return err
}

// RefreshNow runs one full refresh and returns the published best links map.
// m is nil when the analytics result is empty; in that case the previously
// published cache entries are left intact.
func (r *Refresher) RefreshNow(ctx context.Context) (m bestlink.Map, err error) {
	r.logger.InfoContext(ctx, "refresh started")
	defer r.logger.InfoContext(ctx, "refresh finished")

	start := r.clock.Now()
	defer func() {
		r.metrics.SetStatus(ctx, err)
		r.metrics.ObserveRefresh(ctx, r.clock.Now().Sub(start))
	}()

	day := start.UTC()
	rows, err := r.analytics.DomainPostStats(ctx, &analytics.DailyStatsQuery{
		Start:     day,
		End:       day,
		Domains:   r.registry.Hosts(),
		CustomKey: analytics.CustomKeyPostID,
	})
	if err != nil {
		return nil, fmt.Errorf("querying analytics: %w", err)
	}

	if len(rows) == 0 {
		r.logger.InfoContext(ctx, "no analytics rows; keeping previous rankings")

		return nil, nil
	}

	m, list := rank(rows)
	err = r.publish(ctx, m, list)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.  The
		// refresh is partial; the next schedule retries.
		return nil, err
	}

	r.metrics.SetDomainsRanked(ctx, len(list))
	r.logger.InfoContext(ctx, "refresh successful", "num_domains", len(list))

	r.reconcile(ctx, m)

	return m, nil
}

// rank builds the best links map and the eCPM-ordered list from the
// aggregated rows.  Rows with an empty domain or post ID are skipped; a
// strictly greater eCPM replaces the current winner, so ties keep the
// first-seen row.  The list order is stable for equal eCPM values within one
// refresh.
func rank(rows []*analytics.Row) (m bestlink.Map, list bestlink.List) {
	m = bestlink.Map{}

	// Keep the first-seen domain order so that sorting below is reproducible
	// within this refresh.
	var order []string
	best := map[string]*analytics.Row{}
	for _, row := range rows {
		if row.Domain == "" || row.CustomValue == "" {
			continue
		}

		cur, ok := best[row.Domain]
		if !ok {
			best[row.Domain] = row
			order = append(order, row.Domain)
		} else if row.ECPM > cur.ECPM {
			best[row.Domain] = row
		}
	}

	list = make(bestlink.List, 0, len(order))
	for _, domain := range order {
		row := best[domain]
		u := BestPostURL(domain, row.CustomValue)
		m[domain] = &bestlink.Link{
			URL:    u,
			PostID: row.CustomValue,
			ECPM:   row.ECPM,
		}

		list = append(list, &bestlink.Ranked{
			Domain: domain,
			URL:    u,
			PostID: row.CustomValue,
			ECPM:   row.ECPM,
		})
	}

	slices.SortStableFunc(list, func(a, b *bestlink.Ranked) (res int) {
		switch {
		case a.ECPM > b.ECPM:
			return -1
		case a.ECPM < b.ECPM:
			return 1
		default:
			return 0
		}
	})

	return m, list
}

// BestPostURL composes the destination URL of the best post of a domain.
// The post ID round-trips the standard query escaping for any UTF-8 string.
func BestPostURL(domain, postID string) (u string) {
	return "https://" + domain + "/?p=" + url.QueryEscape(postID)
}

// publish writes both ranking keys to the shared cache.  If the first write
// fails, the second one is not attempted and the refresh is considered
// partial.
func (r *Refresher) publish(ctx context.Context, m bestlink.Map, list bestlink.List) (err error) {
	mapData, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding best links map: %w", err)
	}

	listData, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding sorted domains: %w", err)
	}

	err = r.kv.Set(ctx, bestlink.KeyBestLinksMap, mapData, bestlink.PublishTTL)
	if err != nil {
		return fmt.Errorf("publishing best links map: %w", err)
	}

	err = r.kv.Set(ctx, bestlink.KeySortedDomains, listData, bestlink.PublishTTL)
	if err != nil {
		return fmt.Errorf("publishing sorted domains: %w", err)
	}

	return nil
}

// reconcile brings the persisted link collection in line with the published
// map: all records are deactivated, then one active record per winner is
// upserted.  Failures are collected but never fail the refresh, since the
// shared cache is the source of truth for dispatch.
func (r *Refresher) reconcile(ctx context.Context, m bestlink.Map) {
	_, err := r.links.DeactivateAll(ctx)
	if err != nil {
		r.metrics.IncrementReconcileErrors(ctx)
		errcoll.Collect(ctx, r.errColl, r.logger, "deactivating links", err)

		return
	}

	for _, domain := range slices.Sorted(maps.Keys(m)) {
		err = r.links.UpsertActive(ctx, domain, m[domain].URL)
		if err != nil {
			r.metrics.IncrementReconcileErrors(ctx)
			errcoll.Collect(ctx, r.errColl, r.logger, "upserting link", err)
		}
	}
}
