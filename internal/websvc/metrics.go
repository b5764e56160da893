package websvc

import (
	"context"
)

// Metrics is an interface that is used for the collection of the public HTTP
// service statistics.
type Metrics interface {
	// IncrementEmergencies records an emergency redirect: a dispatch that
	// failed and fell back to the constant destination.
	IncrementEmergencies(ctx context.Context)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// IncrementEmergencies implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementEmergencies(_ context.Context) {}
