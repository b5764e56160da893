// Package clickstat implements the click accounting of the dispatcher.  Only
// aggregated counters are kept: one row per link ID with a monotonically
// increasing count.
package clickstat

import (
	"context"
	"time"
)

// Counter is the aggregated click counter of a single link ID.
type Counter struct {
	// CreatedAt is the time of the first click on the link.
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// LinkID identifies the dispatched link, for example "best_<domain>_<post>".
	LinkID string `db:"link_id" json:"link_id"`

	// Count is the number of times the link was selected by dispatch.
	Count int64 `db:"count" json:"count"`
}

// Summary is the aggregated click statistics for the stats endpoint.
type Summary struct {
	// Top are the most clicked links, up to [TopLinkCount] of them, in
	// descending click order.
	Top []*Counter `json:"top"`

	// Links is the number of distinct link IDs ever dispatched.
	Links int64 `json:"links"`

	// Total is the sum of all click counters.
	Total int64 `json:"total"`
}

// TopLinkCount is the number of links reported in [Summary.Top].
const TopLinkCount = 10

// Recorder is the click recorder interface.  Record is called on the hot
// path, detached from the response, so implementations should be quick and
// must be safe for concurrent use.
type Recorder interface {
	// Record atomically increments the click counter of linkID, creating it
	// on first use, and returns the post-increment counter.
	Record(ctx context.Context, linkID string) (c *Counter, err error)

	// Totals returns the aggregated click statistics.
	Totals(ctx context.Context) (s *Summary, err error)
}

// EmptyRecorder is a [Recorder] that does nothing.
type EmptyRecorder struct{}

// type check
var _ Recorder = EmptyRecorder{}

// Record implements the [Recorder] interface for EmptyRecorder.  c is a
// zero-count counter for linkID.
func (EmptyRecorder) Record(_ context.Context, linkID string) (c *Counter, err error) {
	return &Counter{
		LinkID: linkID,
	}, nil
}

// Totals implements the [Recorder] interface for EmptyRecorder.  s is always
// empty.
func (EmptyRecorder) Totals(_ context.Context) (s *Summary, err error) {
	return &Summary{}, nil
}
