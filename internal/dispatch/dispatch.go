// Package dispatch implements the per-request selection algorithm of the
// redirect dispatcher: visitor-scoped sequential assignment across publisher
// domains ordered by eCPM, with a round-robin spill path once the visitor has
// traversed every ranked domain this hour.
package dispatch

import (
	"context"
	"net/url"
	"time"
)

// EmergencyRedirectURL is the destination of the emergency 302 that the HTTP
// layer issues when dispatching fails.  It must be reached only via errors,
// never as the normal outcome.
const EmergencyRedirectURL = "https://useuapp.com/random"

// TTLs of the per-request cache keys.
const (
	// VisitorTTL is the lifetime of a visitor cursor, set on its first
	// increment within a clock hour.
	VisitorTTL = 1 * time.Hour

	// RecentTTL is the lifetime of the anti-replay memo.
	RecentTTL = 5 * time.Second
)

// maxDomainCounter is the value past which the global round-robin counter is
// reset back to 1.
const maxDomainCounter = 1_000_000

// Selection kinds, used as the link ID prefixes and as the metrics label.
const (
	KindBest     = "best"
	KindFallback = "fallback"
	KindRandom   = "random"
)

// Request contains the request data the selection algorithm needs.
type Request struct {
	// Query contains the query parameters of the inbound request: the
	// language selection and the campaign parameters to pass through.
	Query url.Values

	// RemoteAddr is the socket remote address, in "host:port" form.
	RemoteAddr string

	// ForwardedFor is the value of the X-Forwarded-For header, if any.
	ForwardedFor string
}

// Result is the outcome of a successful dispatch.
type Result struct {
	// URL is the final destination URL, with the language prefix and the
	// campaign parameters applied.
	URL string

	// LinkID identifies the selected link for click accounting.
	LinkID string
}

// Metrics is an interface that is used for the collection of the dispatch
// statistics.
type Metrics interface {
	// ObserveDispatch records a served dispatch of the given selection kind:
	// [KindBest], [KindFallback], or [KindRandom].
	ObserveDispatch(ctx context.Context, kind string, dur time.Duration)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveDispatch implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveDispatch(_ context.Context, _ string, _ time.Duration) {}
