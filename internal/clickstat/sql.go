package clickstat

import (
	"context"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/jmoiron/sqlx"
)

// Schema is the idempotent bootstrap statement for the click counter
// collection.  It is executed once at startup by the entry point.  The unique
// index on link_id makes concurrent first-time upserts for the same link
// converge on a single row.
const Schema = `
	CREATE TABLE IF NOT EXISTS redirects_clicks (
		id BIGSERIAL PRIMARY KEY,
		link_id TEXT NOT NULL UNIQUE,
		count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// SQL is the Postgres-backed implementation of the [Recorder] interface.
type SQL struct {
	db      *sqlx.DB
	metrics Metrics
}

// SQLConfig is the configuration for the Postgres-backed click recorder.
// All fields must not be empty.
type SQLConfig struct {
	// DB is the database handle.  It must not be nil.
	DB *sqlx.DB

	// Metrics collects the statistics of the click upserts.  It must not be
	// nil.
	Metrics Metrics
}

// NewSQL returns a new click recorder.  c must not be nil.
func NewSQL(c *SQLConfig) (r *SQL) {
	return &SQL{
		db:      c.DB,
		metrics: c.Metrics,
	}
}

// type check
var _ Recorder = (*SQL)(nil)

// Record implements the [Recorder] interface for *SQL.
func (r *SQL) Record(ctx context.Context, linkID string) (c *Counter, err error) {
	defer func() { err = errors.Annotate(err, "recording click for %q: %w", linkID) }()

	const query = `
		INSERT INTO redirects_clicks (link_id, count, created_at)
		VALUES ($1, 1, now())
		ON CONFLICT (link_id)
		DO UPDATE SET count = redirects_clicks.count + 1
		RETURNING link_id, count, created_at`

	start := time.Now()
	c = &Counter{}
	err = r.db.GetContext(ctx, c, query, linkID)
	r.metrics.ObserveRecord(ctx, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Totals implements the [Recorder] interface for *SQL.
func (r *SQL) Totals(ctx context.Context) (s *Summary, err error) {
	defer func() { err = errors.Annotate(err, "summarizing clicks: %w") }()

	const totalsQuery = `
		SELECT
			COUNT(*) AS links,
			COALESCE(SUM(count), 0) AS total
		FROM redirects_clicks`

	var totals struct {
		Links int64 `db:"links"`
		Total int64 `db:"total"`
	}
	err = r.db.GetContext(ctx, &totals, totalsQuery)
	if err != nil {
		return nil, err
	}

	const topQuery = `
		SELECT link_id, count, created_at
		FROM redirects_clicks
		ORDER BY count DESC
		LIMIT $1`

	var top []*Counter
	err = r.db.SelectContext(ctx, &top, topQuery, TopLinkCount)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Top:   top,
		Links: totals.Links,
		Total: totals.Total,
	}, nil
}
