// Package bestlink contains the entities of the published rankings: the best
// post per publisher domain and the eCPM-ordered domain list, as well as the
// process-local directory that fronts the shared cache on the hot path.
package bestlink

import (
	"context"
	"time"
)

// Shared cache keys.  The ranking refresher is the only writer of
// [KeyBestLinksMap] and [KeySortedDomains]; dispatchers only read them.
const (
	// KeyBestLinksMap is the shared cache key under which the refresher
	// publishes the JSON object mapping a publisher domain to its best link.
	KeyBestLinksMap = "redirect:best_links_map"

	// KeySortedDomains is the shared cache key under which the refresher
	// publishes the JSON array of best links sorted by eCPM in descending
	// order.
	KeySortedDomains = "redirect:sorted_domains"

	// KeyDomainCounter is the shared cache key of the global round-robin
	// counter used by the spill path of the dispatch engine.
	KeyDomainCounter = "redirect:domain:counter"
)

// PublishTTL is how long the published rankings live in the shared cache.
// Rankings older than that are considered expired, and the dispatch engine
// spills over to the static registry.
const PublishTTL = 1 * time.Hour

// Link is the best link of a single publisher domain.
type Link struct {
	// URL is the full destination URL of the best post, with the post ID
	// already encoded into the query.
	URL string `json:"url"`

	// PostID is the identifier of the winning post.
	PostID string `json:"postId"`

	// ECPM is the effective CPM of the winning post in the analytics slice
	// the refresher last saw.
	ECPM float64 `json:"ecpm"`
}

// Map is the best links map keyed by the publisher domain host.
type Map = map[string]*Link

// Ranked is a single element of the eCPM-ordered list: a best link together
// with its publisher domain.
type Ranked struct {
	// Domain is the publisher domain host.
	Domain string `json:"domain"`

	// URL is the full destination URL of the best post.
	URL string `json:"url"`

	// PostID is the identifier of the winning post.
	PostID string `json:"postId"`

	// ECPM is the effective CPM of the winning post.
	ECPM float64 `json:"ecpm"`
}

// List is the list of best links sorted by eCPM in descending order.
type List = []*Ranked

// Source is the interface for the providers of the published rankings used
// by the dispatch engine.  Implementations must never fail: absent data is
// returned as nil.
type Source interface {
	// Map returns the most recent known best links map, possibly stale,
	// possibly nil.
	Map(ctx context.Context) (m Map)

	// List returns the most recent known eCPM-ordered list, possibly stale,
	// possibly nil.
	List(ctx context.Context) (l List)
}

// EmptySource is a [Source] that has no data.
type EmptySource struct{}

// type check
var _ Source = EmptySource{}

// Map implements the [Source] interface for EmptySource.  m is always nil.
func (EmptySource) Map(_ context.Context) (m Map) { return nil }

// List implements the [Source] interface for EmptySource.  l is always nil.
func (EmptySource) List(_ context.Context) (l List) { return nil }
