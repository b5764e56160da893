package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/redisutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redron/dispatch/internal/analytics"
	"github.com/redron/dispatch/internal/bestlink"
	"github.com/redron/dispatch/internal/clickstat"
	"github.com/redron/dispatch/internal/debugsvc"
	"github.com/redron/dispatch/internal/dispatch"
	"github.com/redron/dispatch/internal/errcoll"
	"github.com/redron/dispatch/internal/linkstore"
	"github.com/redron/dispatch/internal/metrics"
	"github.com/redron/dispatch/internal/publisher"
	"github.com/redron/dispatch/internal/ranking"
	"github.com/redron/dispatch/internal/remotekv"
	"github.com/redron/dispatch/internal/remotekv/rediskv"
	"github.com/redron/dispatch/internal/websvc"
	"golang.org/x/time/rate"

	// Register the Postgres driver.
	_ "github.com/lib/pq"
)

// Debug identifiers for the debug HTTP service.
const (
	debugIDDirectory = "bestlink_directory"
	debugIDRanking   = "ranking"
)

// Timeouts for the entities built by the builder.
const (
	// shutdownTimeout is the default shutdown timeout for all services.
	shutdownTimeout = 5 * time.Second

	// refreshTimeout bounds a single scheduled ranking refresh.
	refreshTimeout = 5 * time.Minute

	// webTimeout is the timeout for all public HTTP server operations.
	webTimeout = 1 * time.Minute
)

// defaultRedisPort is the Redis port assumed when REDIS_URL carries none.
const defaultRedisPort uint16 = 6379

// processLimit describes the throttling of the manual refresh endpoint: one
// request per second with a burst of five.
const (
	processLimitRate  = rate.Limit(1)
	processLimitBurst = 5
)

// builder contains the logic of configuring and combining together the
// dispatcher entities.
//
// NOTE:  Keep method definitions in the rough order in which they are
// intended to be called.
type builder struct {
	// The fields below are initialized immediately on construction.  Keep
	// them sorted.

	baseLogger     *slog.Logger
	clock          timeutil.Clock
	debugRefrs     debugsvc.Refreshers
	env            *environment
	errColl        errcoll.Interface
	logger         *slog.Logger
	mtrcNamespace  string
	promRegisterer prometheus.Registerer
	sigHdlr        *service.SignalHandler

	// The fields below are initialized later by calling the builder's
	// methods.  Keep them sorted.

	analytics analytics.Interface
	clicks    clickstat.Recorder
	db        *sqlx.DB
	directory *bestlink.Directory
	engine    *dispatch.Engine
	kv        remotekv.Interface
	links     linkstore.Storage
	refresher *ranking.Refresher
	registry  *publisher.Registry
	webSvc    *websvc.Service

	degraded bool
}

// builderConfig contains the initial configuration for the builder.
type builderConfig struct {
	// envs contains the environment variables for the builder.  It must be
	// valid and must not be nil.
	envs *environment

	// baseLogger is used to create loggers for other entities.  It should
	// not have a prefix and must not be nil.
	baseLogger *slog.Logger

	// errColl is used to collect errors in the entities.  It must not be
	// nil.
	errColl errcoll.Interface
}

// newBuilder returns a new properly initialized builder.  c must not be nil.
func newBuilder(c *builderConfig) (b *builder) {
	return &builder{
		baseLogger:     c.baseLogger,
		clock:          timeutil.SystemClock{},
		debugRefrs:     debugsvc.Refreshers{},
		env:            c.envs,
		errColl:        c.errColl,
		logger:         c.baseLogger.With(slogutil.KeyPrefix, "builder"),
		mtrcNamespace:  metrics.Namespace(),
		promRegisterer: prometheus.DefaultRegisterer,
		sigHdlr: service.NewSignalHandler(&service.SignalHandlerConfig{
			Logger:          c.baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
			ShutdownTimeout: shutdownTimeout,
		}),
	}
}

// initRegistry initializes the registry of publisher domains, either from the
// file at REGISTRY_PATH or the built-in one.
func (b *builder) initRegistry(ctx context.Context) (err error) {
	if p := b.env.RegistryPath; p != "" {
		b.registry, err = publisher.LoadRegistry(p)
		if err != nil {
			// Don't wrap the error, because it's informative enough as is.
			return err
		}
	} else {
		b.registry = publisher.Default()
	}

	b.logger.DebugContext(ctx, "initialized registry", "domains", b.registry.Len())

	return nil
}

// initRedis initializes the shared key-value cache.  Without REDIS_URL the
// dispatcher enters the degraded mode and uses the empty cache.
func (b *builder) initRedis(ctx context.Context) (err error) {
	if b.env.RedisURL == nil {
		b.logger.WarnContext(ctx, "redis is not configured; starting degraded")

		b.degraded = true
		b.kv = remotekv.Empty{}

		return nil
	}

	u := &b.env.RedisURL.URL

	port := defaultRedisPort
	if portStr := u.Port(); portStr != "" {
		port64, portErr := strconv.ParseUint(portStr, 10, 16)
		if portErr != nil {
			return fmt.Errorf("REDIS_URL: port: %w", portErr)
		}

		port = uint16(port64)
	}

	var dbIdx uint8
	if p := u.Path; p != "" && p != "/" {
		idx64, idxErr := strconv.ParseUint(p[1:], 10, 8)
		if idxErr != nil {
			return fmt.Errorf("REDIS_URL: database index: %w", idxErr)
		}

		dbIdx = uint8(idx64)
	}

	dialer, err := redisutil.NewDefaultDialer(&redisutil.DefaultDialerConfig{
		Addr: &netutil.HostPort{
			Host: u.Hostname(),
			Port: port,
		},
		DBIndex: dbIdx,
	})
	if err != nil {
		return fmt.Errorf("redis dialer: %w", err)
	}

	pool, err := redisutil.NewDefaultPool(&redisutil.DefaultPoolConfig{
		Logger:      b.baseLogger.With(slogutil.KeyPrefix, "redis_pool"),
		Dialer:      dialer,
		IdleTimeout: time.Duration(b.env.RedisIdleTimeout),
		MaxActive:   b.env.RedisMaxActive,
		MaxIdle:     b.env.RedisMaxActive,
		Wait:        true,
	})
	if err != nil {
		return fmt.Errorf("redis pool: %w", err)
	}

	kvMtrc, err := metrics.NewRedisKV(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("redis metrics: %w", err)
	}

	b.kv = rediskv.NewRedisKV(&rediskv.RedisKVConfig{
		Metrics: kvMtrc,
		Pool:    pool,
	})

	b.logger.DebugContext(ctx, "initialized redis", "host", u.Hostname(), "port", port)

	return nil
}

// initDatabase initializes the relational database handle and ensures the
// schemas.  Without a DSN the dispatcher enters the degraded mode.
func (b *builder) initDatabase(ctx context.Context) (err error) {
	dsn := b.env.databaseDSN()
	if dsn == "" {
		b.logger.WarnContext(ctx, "database is not configured; starting degraded")

		b.degraded = true

		return nil
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(b.env.DBMaxOpenConns)
	b.db = db

	// Register the database first so that it is closed after the services
	// that use it have shut down.
	b.sigHdlr.AddService(&databaseService{db: db})

	for _, schema := range []string{linkstore.Schema, clickstat.Schema} {
		_, execErr := db.ExecContext(ctx, schema)
		if execErr != nil {
			b.logger.WarnContext(
				ctx,
				"ensuring schema",
				slogutil.KeyError, execErr,
			)
		}
	}

	b.logger.DebugContext(ctx, "initialized database")

	return nil
}

// initStores initializes the repositories on top of the database handle.
// It is a no-op in the degraded mode.
//
// The following methods must be called before this one:
//   - [builder.initDatabase]
func (b *builder) initStores(ctx context.Context) (err error) {
	if b.db == nil {
		return nil
	}

	clickMtrc, err := metrics.NewClickStat(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("clickstat metrics: %w", err)
	}

	b.analytics = analytics.NewSQL(b.db)
	b.links = linkstore.NewSQL(b.db)
	b.clicks = clickstat.NewSQL(&clickstat.SQLConfig{
		DB:      b.db,
		Metrics: clickMtrc,
	})

	b.logger.DebugContext(ctx, "initialized stores")

	return nil
}

// initDirectory initializes the in-memory directory fronting the published
// rankings.
//
// The following methods must be called before this one:
//   - [builder.initRedis]
func (b *builder) initDirectory(ctx context.Context) (err error) {
	dirMtrc, err := metrics.NewBestLink(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("bestlink metrics: %w", err)
	}

	b.directory = bestlink.NewDirectory(&bestlink.DirectoryConfig{
		Logger:   b.baseLogger.With(slogutil.KeyPrefix, "bestlink_directory"),
		KV:       b.kv,
		ErrColl:  b.errColl,
		Metrics:  dirMtrc,
		CacheTTL: bestlink.DefaultCacheTTL,
	})

	b.debugRefrs[debugIDDirectory] = b.directory

	b.logger.DebugContext(ctx, "initialized directory")

	return nil
}

// initDispatch initializes the dispatch engine.
//
// The following methods must be called before this one:
//   - [builder.initDirectory]
//   - [builder.initRedis]
//   - [builder.initRegistry]
//   - [builder.initStores]
func (b *builder) initDispatch(ctx context.Context) (err error) {
	dispMtrc, err := metrics.NewDispatch(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("dispatch metrics: %w", err)
	}

	b.engine = dispatch.NewEngine(&dispatch.EngineConfig{
		Logger:   b.baseLogger.With(slogutil.KeyPrefix, "dispatch"),
		ErrColl:  b.errColl,
		Metrics:  dispMtrc,
		Clock:    b.clock,
		KV:       b.kv,
		Source:   b.directory,
		Recorder: b.clicks,
		Registry: b.registry,
	})

	b.logger.DebugContext(ctx, "initialized dispatch")

	return nil
}

// initRanking initializes the ranking refresher and, on the primary replica,
// runs the initial refresh and starts the scheduled worker.
//
// The following methods must be called before this one:
//   - [builder.initRedis]
//   - [builder.initRegistry]
//   - [builder.initStores]
func (b *builder) initRanking(ctx context.Context) (err error) {
	rankMtrc, err := metrics.NewRanking(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("ranking metrics: %w", err)
	}

	b.refresher = ranking.NewRefresher(&ranking.RefresherConfig{
		Logger:    b.baseLogger.With(slogutil.KeyPrefix, "ranking"),
		ErrColl:   b.errColl,
		Metrics:   rankMtrc,
		Clock:     b.clock,
		Analytics: b.analytics,
		KV:        b.kv,
		Links:     b.links,
		Registry:  b.registry,
	})

	if b.degraded || !b.env.isPrimary() {
		b.logger.DebugContext(
			ctx,
			"skipping ranking worker",
			"degraded", b.degraded,
			"worker_id", b.env.WorkerID,
		)

		return nil
	}

	refrErr := b.refresher.Refresh(ctx)
	if refrErr != nil {
		b.logger.WarnContext(ctx, "initial refresh", slogutil.KeyError, refrErr)
	}

	worker, err := ranking.NewWorker(&ranking.WorkerConfig{
		BaseLogger: b.baseLogger,
		Refresher:  b.refresher,
		CronSpec:   ranking.DefaultCronSpec,
		Timeout:    refreshTimeout,
	})
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	err = worker.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting ranking worker: %w", err)
	}

	b.sigHdlr.AddService(worker)
	b.debugRefrs[debugIDRanking] = b.refresher

	b.logger.DebugContext(ctx, "initialized ranking")

	return nil
}

// initWeb initializes and starts the public HTTP service.
//
// The following methods must be called before this one:
//   - [builder.initDispatch]
//   - [builder.initRanking]
//   - [builder.initStores]
func (b *builder) initWeb(ctx context.Context) (err error) {
	webMtrc, err := metrics.NewWebSvc(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("websvc metrics: %w", err)
	}

	var db websvc.Pinger
	if b.db != nil {
		db = b.db
	}

	b.webSvc = websvc.New(&websvc.Config{
		Logger:         b.baseLogger.With(slogutil.KeyPrefix, "websvc"),
		ErrColl:        b.errColl,
		Metrics:        webMtrc,
		Clock:          b.clock,
		Dispatcher:     b.engine,
		Refresher:      b.refresher,
		Analytics:      b.analytics,
		Links:          b.links,
		Clicks:         b.clicks,
		KV:             b.kv,
		DB:             db,
		ProcessLimiter: rate.NewLimiter(processLimitRate, processLimitBurst),
		BindAddr:       netutil.JoinHostPort("0.0.0.0", b.env.ListenPort),
		CORSOrigin:     b.env.CORSOrigin,
		Timeout:        webTimeout,
		MaxHeaderBytes: int(b.env.MaxHeaderSize.Bytes()),
		DevMode:        b.env.NodeEnv == nodeEnvDevelopment,
		Degraded:       b.degraded,
	})

	err = b.webSvc.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting public http service: %w", err)
	}

	b.sigHdlr.AddService(b.webSvc)

	b.logger.DebugContext(ctx, "initialized web")

	return nil
}

// mustInitDebugSvc initializes, starts, and registers the debug service,
// unless DEBUG_LISTEN_PORT is zero.  The debug HTTP service is considered
// critical, so it panics instead of returning an error.
//
// The following methods must be called before this one:
//   - [builder.initDirectory]
//   - [builder.initRanking]
func (b *builder) mustInitDebugSvc(ctx context.Context) {
	if b.env.DebugListenPort == 0 {
		b.logger.DebugContext(ctx, "debug api disabled")

		return
	}

	debugSvc := debugsvc.New(&debugsvc.Config{
		Logger:     b.baseLogger.With(slogutil.KeyPrefix, "debugsvc"),
		Refreshers: b.debugRefrs,
		ListenAddr: netutil.JoinHostPort(
			b.env.DebugListenAddr.String(),
			b.env.DebugListenPort,
		),
	})

	// The debug HTTP service is considered critical, so its Start method
	// panics instead of returning an error.
	_ = debugSvc.Start(context.WithoutCancel(ctx))

	b.sigHdlr.AddService(debugSvc)

	b.logger.DebugContext(
		ctx,
		"initialized debug",
		"refr_ids", slices.Sorted(maps.Keys(b.debugRefrs)),
	)
}

// handleSignals blocks and processes signals from the OS.  status is
// [osutil.ExitCodeSuccess] on success and [osutil.ExitCodeFailure] on error.
//
// handleSignals must not be called concurrently with any other methods.
func (b *builder) handleSignals(ctx context.Context) (code osutil.ExitCode) {
	return b.sigHdlr.Handle(ctx)
}

// databaseService adapts the database handle to the service shutdown flow.
type databaseService struct {
	db *sqlx.DB
}

// type check
var _ service.Interface = (*databaseService)(nil)

// Start implements the [service.Interface] interface for *databaseService.
func (s *databaseService) Start(_ context.Context) (err error) {
	return nil
}

// Shutdown implements the [service.Interface] interface for
// *databaseService.
func (s *databaseService) Shutdown(_ context.Context) (err error) {
	return s.db.Close()
}
