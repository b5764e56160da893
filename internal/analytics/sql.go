package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/jmoiron/sqlx"
)

// dateLayout is the YYYY-MM-DD form in which days are compared with the date
// column.
const dateLayout = time.DateOnly

// SQL is the Postgres-backed implementation of the [Interface] interface.
type SQL struct {
	db *sqlx.DB
}

// NewSQL returns a new analytics repository over db.  db must not be nil.
func NewSQL(db *sqlx.DB) (r *SQL) {
	return &SQL{
		db: db,
	}
}

// type check
var _ Interface = (*SQL)(nil)

// statsRow is the scanning form of an aggregated row.  The upstream ETL
// leaves numeric columns NULL for days without data, so every numeric column
// scans through a nullable type and converts exactly once, in toRow.
type statsRow struct {
	Domain      sql.NullString  `db:"domain"`
	CustomValue sql.NullString  `db:"custom_value"`
	Impressions sql.NullInt64   `db:"impressions"`
	Clicks      sql.NullInt64   `db:"clicks"`
	Revenue     sql.NullFloat64 `db:"revenue"`
	ECPM        sql.NullFloat64 `db:"ecpm"`
}

// toRow converts the scanned row into its clean form.
func (sr *statsRow) toRow(day time.Time, customKey string) (r *Row) {
	return &Row{
		Date:        day,
		Domain:      sr.Domain.String,
		CustomKey:   customKey,
		CustomValue: sr.CustomValue.String,
		Impressions: sr.Impressions.Int64,
		Clicks:      sr.Clicks.Int64,
		Revenue:     sr.Revenue.Float64,
		ECPM:        sr.ECPM.Float64,
	}
}

// DomainPostStats implements the [Interface] interface for *SQL.
func (r *SQL) DomainPostStats(
	ctx context.Context,
	q *DailyStatsQuery,
) (rows []*Row, err error) {
	defer func() { err = errors.Annotate(err, "querying domain post stats: %w") }()

	const query = `
		SELECT
			domain,
			custom_value,
			SUM(impressions) AS impressions,
			SUM(clicks) AS clicks,
			SUM(revenue) AS revenue,
			CASE
				WHEN SUM(impressions) > 0
				THEN SUM(revenue) / SUM(impressions) * 1000
				ELSE 0
			END AS ecpm
		FROM analytics
		WHERE date >= ? AND date <= ?
			AND custom_key = ?
			AND domain IN (?)
		GROUP BY domain, custom_key, custom_value`

	bound, args, err := sqlx.In(
		query,
		q.Start.Format(dateLayout),
		q.End.Format(dateLayout),
		q.CustomKey,
		q.Domains,
	)
	if err != nil {
		return nil, fmt.Errorf("binding arguments: %w", err)
	}

	var scanned []*statsRow
	err = r.db.SelectContext(ctx, &scanned, r.db.Rebind(bound), args...)
	if err != nil {
		return nil, err
	}

	rows = make([]*Row, 0, len(scanned))
	for _, sr := range scanned {
		rows = append(rows, sr.toRow(q.Start, q.CustomKey))
	}

	return rows, nil
}

// totalsRow is the scanning form of [Totals].
type totalsRow struct {
	Impressions sql.NullInt64   `db:"impressions"`
	Clicks      sql.NullInt64   `db:"clicks"`
	Revenue     sql.NullFloat64 `db:"revenue"`
}

// TotalStats implements the [Interface] interface for *SQL.
func (r *SQL) TotalStats(ctx context.Context, day time.Time) (t *Totals, err error) {
	defer func() { err = errors.Annotate(err, "querying total stats: %w") }()

	const query = `
		SELECT
			SUM(impressions) AS impressions,
			SUM(clicks) AS clicks,
			SUM(revenue) AS revenue
		FROM analytics
		WHERE date = $1`

	var tr totalsRow
	err = r.db.GetContext(ctx, &tr, query, day.Format(dateLayout))
	if err != nil {
		return nil, err
	}

	t = &Totals{
		Impressions: tr.Impressions.Int64,
		Clicks:      tr.Clicks.Int64,
		Revenue:     tr.Revenue.Float64,
	}

	if t.Impressions > 0 {
		t.ECPM = t.Revenue / float64(t.Impressions) * 1000
		t.CTR = float64(t.Clicks) / float64(t.Impressions) * 100
	}

	return t, nil
}

// trafficRow is the scanning form of [DomainTotals].
type trafficRow struct {
	Domain      sql.NullString  `db:"domain"`
	Impressions sql.NullInt64   `db:"impressions"`
	Clicks      sql.NullInt64   `db:"clicks"`
	Revenue     sql.NullFloat64 `db:"revenue"`
}

// DomainTraffic implements the [Interface] interface for *SQL.
func (r *SQL) DomainTraffic(
	ctx context.Context,
	day time.Time,
) (traffic []*DomainTotals, err error) {
	defer func() { err = errors.Annotate(err, "querying domain traffic: %w") }()

	const query = `
		SELECT
			domain,
			SUM(impressions) AS impressions,
			SUM(clicks) AS clicks,
			SUM(revenue) AS revenue
		FROM analytics
		WHERE date = $1
		GROUP BY domain
		ORDER BY SUM(revenue) DESC`

	var scanned []*trafficRow
	err = r.db.SelectContext(ctx, &scanned, query, day.Format(dateLayout))
	if err != nil {
		return nil, err
	}

	traffic = make([]*DomainTotals, 0, len(scanned))
	for _, tr := range scanned {
		dt := &DomainTotals{
			Domain:      tr.Domain.String,
			Impressions: tr.Impressions.Int64,
			Clicks:      tr.Clicks.Int64,
			Revenue:     tr.Revenue.Float64,
		}

		if dt.Impressions > 0 {
			dt.ECPM = dt.Revenue / float64(dt.Impressions) * 1000
		}

		traffic = append(traffic, dt)
	}

	return traffic, nil
}

// Distinct implements the [Interface] interface for *SQL.
func (r *SQL) Distinct(ctx context.Context, field string) (vals []string, err error) {
	defer func() { err = errors.Annotate(err, "querying distinct %q: %w", field) }()

	if !slices.Contains(ValidDistinctFields, field) {
		return nil, ErrBadField
	}

	// The field name is validated against the closed set above, so it is safe
	// to interpolate it.
	query := fmt.Sprintf(
		`SELECT DISTINCT CAST(%[1]s AS TEXT) AS val FROM analytics ORDER BY val`,
		field,
	)

	err = r.db.SelectContext(ctx, &vals, query)
	if err != nil {
		return nil, err
	}

	return vals, nil
}
