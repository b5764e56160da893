package ranking

import (
	"context"
	"time"
)

// Metrics is an interface that is used for the collection of the ranking
// refresher statistics.
type Metrics interface {
	// SetStatus sets the status and the time of the most recent refresh.
	// err is nil for a successful refresh.
	SetStatus(ctx context.Context, err error)

	// ObserveRefresh records the duration of a single refresh.
	ObserveRefresh(ctx context.Context, dur time.Duration)

	// SetDomainsRanked sets the number of domains in the published list.
	SetDomainsRanked(ctx context.Context, n int)

	// IncrementReconcileErrors records a failed link-store reconciliation
	// write.
	IncrementReconcileErrors(ctx context.Context)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// SetStatus implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetStatus(_ context.Context, _ error) {}

// ObserveRefresh implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveRefresh(_ context.Context, _ time.Duration) {}

// SetDomainsRanked implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetDomainsRanked(_ context.Context, _ int) {}

// IncrementReconcileErrors implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementReconcileErrors(_ context.Context) {}
