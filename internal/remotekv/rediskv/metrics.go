package rediskv

import (
	"context"
	"time"
)

// Metrics is an interface that is used for the collection of the Redis
// command statistics.
type Metrics interface {
	// ObserveOperation records the duration and the result of a single Redis
	// command.  cmd is the Redis command name, for example "GET".
	ObserveOperation(ctx context.Context, cmd string, dur time.Duration, isSuccess bool)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveOperation implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveOperation(_ context.Context, _ string, _ time.Duration, _ bool) {}
