// Package cmd is the redirect dispatcher entry point.  It contains the
// environment processing, signal handling logic, and so on.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/sentryutil"
	"github.com/redron/dispatch/internal/errcoll"
	"github.com/redron/dispatch/internal/metrics"
	"github.com/redron/dispatch/internal/version"
	"golang.org/x/sys/unix"
)

// Main is the entry point of application.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)

	envs := errors.Must(parseEnvironment())
	errors.Check(envs.Validate())

	lvl := errors.Must(slogutil.VerbosityToLevel(envs.Verbosity))
	baseLogger := slogutil.New(&slogutil.Config{
		// Don't use [slogutil.NewFormat] here, because the value is validated.
		Format:       slogutil.Format(envs.LogFormat),
		AddTimestamp: bool(envs.LogTimestamp),
		Level:        lvl,
	})

	sentryutil.SetDefaultLogger(baseLogger, "")

	mainLogger := baseLogger.With(slogutil.KeyPrefix, "main")

	branch := version.Branch()
	commitTime := version.CommitTime()
	buildVersion := version.Version()
	revision := version.Revision()
	mainLogger.InfoContext(
		ctx,
		"dispatcher starting",
		"version", buildVersion,
		"revision", revision,
		"branch", branch,
		"commit_time", commitTime,
	)

	errColl := errors.Must(envs.buildErrColl(baseLogger))

	defer reportPanics(ctx, errColl, mainLogger)

	setMaxProcs(ctx, mainLogger, envs.WorkerCount)

	b := newBuilder(&builderConfig{
		envs:       envs,
		baseLogger: baseLogger,
		errColl:    errColl,
	})

	errors.Check(b.initRegistry(ctx))

	errors.Check(b.initRedis(ctx))

	errors.Check(b.initDatabase(ctx))

	errors.Check(b.initStores(ctx))

	errors.Check(b.initDirectory(ctx))

	errors.Check(b.initDispatch(ctx))

	errors.Check(b.initRanking(ctx))

	errors.Check(b.initWeb(ctx))

	b.mustInitDebugSvc(ctx)

	errors.Check(metrics.SetUpGauge(
		b.promRegisterer,
		buildVersion,
		branch,
		commitTime,
		revision,
		runtime.Version(),
	))

	mainLogger.InfoContext(ctx, "dispatcher started")

	// The signal handler owns the signals from here on, so release the
	// startup notification context.
	stop()

	ctx = context.WithoutCancel(ctx)

	os.Exit(b.handleSignals(ctx))
}

// setMaxProcs caps the number of simultaneously running OS threads when the
// worker count is set.
func setMaxProcs(ctx context.Context, l *slog.Logger, n int) {
	if n <= 0 {
		return
	}

	runtime.GOMAXPROCS(n)

	l.InfoContext(ctx, "capped gomaxprocs", "n", n)
}

// reportPanics reports all panics in Main.  It should be called in a deferred
// call of Main.
func reportPanics(ctx context.Context, errColl errcoll.Interface, l *slog.Logger) {
	v := recover()
	if v == nil {
		return
	}

	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", v)
	}

	errColl.Collect(ctx, err)
	l.ErrorContext(ctx, "recovered from panic", slogutil.KeyError, err)
	slogutil.PrintStack(ctx, l, slog.LevelError)

	os.Exit(osutil.ExitCodeFailure)
}
