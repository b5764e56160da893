package linkstore

import (
	"context"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Schema is the idempotent bootstrap statement for the best-link collection.
// It is executed once at startup by the entry point.
const Schema = `
	CREATE TABLE IF NOT EXISTS redirects_links (
		id BIGSERIAL PRIMARY KEY,
		domain TEXT NOT NULL,
		url TEXT NOT NULL,
		status BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (domain, url)
	)`

// pqUniqueViolation is the Postgres error code for unique-index violations.
const pqUniqueViolation = "23505"

// SQL is the Postgres-backed implementation of the [Storage] interface.
type SQL struct {
	db *sqlx.DB
}

// NewSQL returns a new link storage over db.  db must not be nil.
func NewSQL(db *sqlx.DB) (s *SQL) {
	return &SQL{
		db: db,
	}
}

// type check
var _ Storage = (*SQL)(nil)

// DeactivateAll implements the [Storage] interface for *SQL.
func (s *SQL) DeactivateAll(ctx context.Context) (n int64, err error) {
	defer func() { err = errors.Annotate(err, "deactivating links: %w") }()

	const query = `
		UPDATE redirects_links
		SET status = FALSE, updated_at = now()
		WHERE status = TRUE`

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, mapErr(err)
	}

	n, err = res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, nil
}

// UpsertActive implements the [Storage] interface for *SQL.
func (s *SQL) UpsertActive(ctx context.Context, domain, url string) (err error) {
	defer func() { err = errors.Annotate(err, "upserting link for %q: %w", domain) }()

	const query = `
		INSERT INTO redirects_links (domain, url, status)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (domain, url)
		DO UPDATE SET status = TRUE, updated_at = now()`

	_, err = s.db.ExecContext(ctx, query, domain, url)
	if err != nil {
		return mapErr(err)
	}

	return nil
}

// All implements the [Storage] interface for *SQL.
func (s *SQL) All(ctx context.Context) (links []*Link, err error) {
	defer func() { err = errors.Annotate(err, "listing links: %w") }()

	const query = `
		SELECT id, domain, url, status, created_at, updated_at
		FROM redirects_links
		ORDER BY created_at DESC`

	err = s.db.SelectContext(ctx, &links, query)
	if err != nil {
		return nil, err
	}

	return links, nil
}

// mapErr converts driver-specific errors into the package's sentinel ones.
func mapErr(err error) (mapped error) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicate
	}

	return err
}
