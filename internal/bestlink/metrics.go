package bestlink

import "context"

// Metrics is an interface that is used for the collection of the link
// directory statistics.
type Metrics interface {
	// IncrementLookups records a directory lookup.  hit shows whether the
	// fresh process-local copy served it.
	IncrementLookups(ctx context.Context, hit bool)

	// IncrementStale records a lookup that had to fall back to the last
	// known copy because the shared cache was unavailable or had no data.
	IncrementStale(ctx context.Context)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// IncrementLookups implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementLookups(_ context.Context, _ bool) {}

// IncrementStale implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementStale(_ context.Context) {}
