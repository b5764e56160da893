package clickstat

import (
	"context"
	"time"
)

// Metrics is an interface that is used for the collection of the click
// recorder statistics.
type Metrics interface {
	// ObserveRecord records the duration and the result of a single click
	// upsert.
	ObserveRecord(ctx context.Context, dur time.Duration, isSuccess bool)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveRecord implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveRecord(_ context.Context, _ time.Duration, _ bool) {}
