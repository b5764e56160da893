package ranking

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/contextutil"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/robfig/cron/v3"
)

// DefaultCronSpec is the binding schedule of the ranking refresh: minute 30
// of every hour, in the system's local time zone.  A missed firing is
// dropped, not queued.
const DefaultCronSpec = "30 * * * *"

// CronSchedule is a [timeutil.Schedule] evaluating a standard five-field cron
// expression.
type CronSchedule struct {
	sched cron.Schedule
}

// NewCronSchedule parses spec as a standard cron expression and returns the
// schedule.
func NewCronSchedule(spec string) (s *CronSchedule, err error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing cron spec %q: %w", spec, err)
	}

	return &CronSchedule{
		sched: sched,
	}, nil
}

// type check
var _ timeutil.Schedule = (*CronSchedule)(nil)

// UntilNext implements the [timeutil.Schedule] interface for *CronSchedule.
func (s *CronSchedule) UntilNext(now time.Time) (d time.Duration) {
	return s.sched.Next(now).Sub(now)
}

// WorkerConfig is the configuration for the scheduled refresh worker.  All
// fields must not be empty.
type WorkerConfig struct {
	// BaseLogger is used to create loggers for the worker's error handler.
	BaseLogger *slog.Logger

	// Refresher is the refresher to run on schedule.
	Refresher service.Refresher

	// CronSpec is the refresh schedule, for example [DefaultCronSpec].
	CronSpec string

	// Timeout bounds a single refresh run.  It must be positive.
	Timeout time.Duration
}

// NewWorker returns a started-later refresh worker running c.Refresher on the
// cron schedule.  Refresh errors are logged and do not stop the worker.  c
// must not be nil.
func NewWorker(c *WorkerConfig) (w *service.RefreshWorker, err error) {
	sched, err := NewCronSchedule(c.CronSpec)
	if err != nil {
		return nil, err
	}

	return service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(c.Timeout),
		ErrorHandler: service.NewSlogErrorHandler(
			c.BaseLogger.With(slogutil.KeyPrefix, "ranking_refresh"),
			slog.LevelError,
			"refreshing",
		),
		Refresher:         c.Refresher,
		Schedule:          sched,
		RefreshOnShutdown: false,
	}), nil
}
