// Package analytics contains the read-only repository of the analytics
// collection.  The collection is produced by an upstream ETL; the dispatcher
// only aggregates it to rank publisher posts and to serve the reporting
// endpoints.
package analytics

import (
	"context"
	"time"

	"github.com/AdguardTeam/golibs/errors"
)

// CustomKeyPostID is the custom-key value under which the upstream ETL
// reports the identifier of a publisher post.
const CustomKeyPostID = "id_post_wp"

// ErrBadField is returned by [Interface.Distinct] when the requested field is
// not in [ValidDistinctFields].
const ErrBadField errors.Error = "bad field"

// ValidDistinctFields are the fields that [Interface.Distinct] accepts, in a
// stable order for error responses.
var ValidDistinctFields = []string{"custom_key", "custom_value", "date", "domain"}

// Row is a single aggregated analytics row.  All numeric fields are parsed
// into concrete types once, at the repository boundary; missing values are
// zeroes.
type Row struct {
	// Date is the first day of the aggregated period.
	Date time.Time

	// Domain is the publisher domain host.
	Domain string

	// CustomKey is the grouping key of the custom dimension, for example
	// [CustomKeyPostID].
	CustomKey string

	// CustomValue is the value of the custom dimension, for example a post
	// ID.
	CustomValue string

	// Impressions is the total number of ad impressions.
	Impressions int64

	// Clicks is the total number of ad clicks.
	Clicks int64

	// Revenue is the total revenue in account currency.
	Revenue float64

	// ECPM is the effective CPM, revenue per thousand impressions.  It is
	// zero when there are no impressions.
	ECPM float64
}

// DailyStatsQuery describes an aggregation over a date range grouped by
// domain and the custom dimension.
type DailyStatsQuery struct {
	// Start is the first day of the range, inclusive.
	Start time.Time

	// End is the last day of the range, inclusive.
	End time.Time

	// Domains limits the aggregation to these publisher domain hosts.  It
	// must not be empty.
	Domains []string

	// CustomKey is the custom-dimension key to group by.  It must not be
	// empty.
	CustomKey string
}

// Totals are the account-wide totals of a single day.
type Totals struct {
	// Impressions is the total number of ad impressions.
	Impressions int64 `json:"impressions"`

	// Clicks is the total number of ad clicks.
	Clicks int64 `json:"clicks"`

	// Revenue is the total revenue in account currency.
	Revenue float64 `json:"revenue"`

	// ECPM is the effective CPM over the whole day.
	ECPM float64 `json:"ecpm"`

	// CTR is the click-through rate, in percent.
	CTR float64 `json:"ctr"`
}

// DomainTotals are the totals of a single publisher domain for a single day.
type DomainTotals struct {
	// Domain is the publisher domain host.
	Domain string `json:"domain"`

	// Impressions is the number of ad impressions on the domain.
	Impressions int64 `json:"impressions"`

	// Clicks is the number of ad clicks on the domain.
	Clicks int64 `json:"clicks"`

	// Revenue is the revenue of the domain in account currency.
	Revenue float64 `json:"revenue"`

	// ECPM is the effective CPM of the domain.
	ECPM float64 `json:"ecpm"`
}

// Interface is the read-only analytics repository interface.
type Interface interface {
	// DomainPostStats aggregates the rows of the given range grouped by
	// domain and the custom dimension.  q must not be nil and must be valid.
	DomainPostStats(ctx context.Context, q *DailyStatsQuery) (rows []*Row, err error)

	// TotalStats returns the account-wide totals for the given day.
	TotalStats(ctx context.Context, day time.Time) (t *Totals, err error)

	// DomainTraffic returns the per-domain totals for the given day, sorted
	// by revenue in descending order.
	DomainTraffic(ctx context.Context, day time.Time) (traffic []*DomainTotals, err error)

	// Distinct returns the distinct values of the given field.  field must be
	// one of [ValidDistinctFields]; otherwise, the returned error wraps
	// [ErrBadField].
	Distinct(ctx context.Context, field string) (vals []string, err error)
}
