// Package linkstore contains the persisted collection of currently-active
// best links.  The collection is mutated only by the ranking refresher; the
// shared cache remains the source of truth for dispatch, so all writes here
// are best-effort.
package linkstore

import (
	"context"
	"time"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrDuplicate is returned when a write violates a unique index.  The HTTP
// surface maps it to a 409.
const ErrDuplicate errors.Error = "duplicate key"

// Link is a persisted best-link record.
type Link struct {
	// CreatedAt is the time at which the record was first created.
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// UpdatedAt is the time of the most recent status change.
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Domain is the publisher domain host.
	Domain string `db:"domain" json:"domain"`

	// URL is the full destination URL of the best post.
	URL string `db:"url" json:"url"`

	// ID is the surrogate key of the record.
	ID int64 `db:"id" json:"id"`

	// Status shows whether the link won the most recent refresh.
	Status bool `db:"status" json:"status"`
}

// Storage is the interface for the persisted best-link collection.
type Storage interface {
	// DeactivateAll sets status to false on all currently-active records and
	// returns the number of records changed.
	DeactivateAll(ctx context.Context) (n int64, err error)

	// UpsertActive inserts an active record for (domain, url) or reactivates
	// the existing one, refreshing its update time.
	UpsertActive(ctx context.Context, domain, url string) (err error)

	// All returns all records, newest first.
	All(ctx context.Context) (links []*Link, err error)
}

// Empty is a [Storage] that does nothing.
type Empty struct{}

// type check
var _ Storage = Empty{}

// DeactivateAll implements the [Storage] interface for Empty.  n is always
// zero.
func (Empty) DeactivateAll(_ context.Context) (n int64, err error) { return 0, nil }

// UpsertActive implements the [Storage] interface for Empty.
func (Empty) UpsertActive(_ context.Context, _, _ string) (err error) { return nil }

// All implements the [Storage] interface for Empty.  links is always nil.
func (Empty) All(_ context.Context) (links []*Link, err error) { return nil, nil }
