// Package websvc contains the public HTTP surface of the redirect dispatcher:
// the dispatch endpoint, the reporting API, and the health endpoints.
package websvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/redron/dispatch/internal/analytics"
	"github.com/redron/dispatch/internal/bestlink"
	"github.com/redron/dispatch/internal/clickstat"
	"github.com/redron/dispatch/internal/dispatch"
	"github.com/redron/dispatch/internal/errcoll"
	"github.com/redron/dispatch/internal/linkstore"
	"github.com/redron/dispatch/internal/remotekv"
	"golang.org/x/time/rate"
)

// Dispatcher is the interface of the dispatch engine used by the service.
type Dispatcher interface {
	// Dispatch runs the selection algorithm for req.  req must not be nil.
	Dispatch(ctx context.Context, req *dispatch.Request) (res *dispatch.Result, err error)
}

// Refresher is the interface of the ranking refresher used by the manual
// refresh endpoint.
type Refresher interface {
	// RefreshNow runs one full refresh and returns the published map, which is
	// nil when the analytics result is empty.
	RefreshNow(ctx context.Context) (m bestlink.Map, err error)
}

// Pinger is the interface of the relational database used by the detailed
// health check.  *sqlx.DB satisfies it.
type Pinger interface {
	// PingContext verifies that the database is reachable.
	PingContext(ctx context.Context) (err error)
}

// Config is the public HTTP service configuration structure.  All fields must
// not be empty unless noted otherwise.
type Config struct {
	// Logger is used to log the requests and the operation of the service.
	Logger *slog.Logger

	// ErrColl is used to collect the dispatch and panic errors.
	ErrColl errcoll.Interface

	// Metrics collects the statistics of the served requests.
	Metrics Metrics

	// Clock determines the reporting day of the API endpoints.
	Clock timeutil.Clock

	// Dispatcher serves the root endpoint.
	Dispatcher Dispatcher

	// Refresher serves the manual refresh endpoint.
	Refresher Refresher

	// Analytics is the read-only analytics repository.
	Analytics analytics.Interface

	// Links is the persisted best-link collection.
	Links linkstore.Storage

	// Clicks is the click accounting.
	Clicks clickstat.Recorder

	// KV is the shared cache, used by the detailed health check.
	KV remotekv.Interface

	// DB is the relational database, used by the detailed health check.  It
	// may be nil in degraded mode.
	DB Pinger

	// ProcessLimiter throttles the manual refresh endpoint.
	ProcessLimiter *rate.Limiter

	// BindAddr is the address of the public listener, in "host:port" form.
	BindAddr string

	// CORSOrigin is the value of the Access-Control-Allow-Origin header on
	// every response.
	CORSOrigin string

	// Timeout is the timeout for all server operations.
	Timeout time.Duration

	// MaxHeaderBytes limits the size of the request headers.
	MaxHeaderBytes int

	// DevMode enables stack traces in the API error responses.
	DevMode bool

	// Degraded makes the dispatch and API endpoints respond with 503, when
	// the required stores were not configured.
	Degraded bool
}

// Service is the public HTTP service of the redirect dispatcher.
type Service struct {
	logger     *slog.Logger
	errColl    errcoll.Interface
	metrics    Metrics
	clock      timeutil.Clock
	dispatcher Dispatcher
	refresher  Refresher
	analytics  analytics.Interface
	links      linkstore.Storage
	clicks     clickstat.Recorder
	kv         remotekv.Interface
	db         Pinger
	procLim    *rate.Limiter
	srv        *http.Server
	corsOrigin string
	devMode    bool
	degraded   bool
}

// New returns a new properly initialized *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger:     c.Logger,
		errColl:    c.ErrColl,
		metrics:    c.Metrics,
		clock:      c.Clock,
		dispatcher: c.Dispatcher,
		refresher:  c.Refresher,
		analytics:  c.Analytics,
		links:      c.Links,
		clicks:     c.Clicks,
		kv:         c.KV,
		db:         c.DB,
		procLim:    c.ProcessLimiter,
		corsOrigin: c.CORSOrigin,
		devMode:    c.DevMode,
		degraded:   c.Degraded,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", http.HandlerFunc(svc.serveDispatch))
	mux.Handle("GET /api/process", http.HandlerFunc(svc.serveProcess))
	mux.Handle("GET /api/stats", http.HandlerFunc(svc.serveStats))
	mux.Handle("GET /api/distinct/{field}", http.HandlerFunc(svc.serveDistinct))
	mux.Handle("GET /api/links", http.HandlerFunc(svc.serveLinks))
	mux.Handle("GET /health", http.HandlerFunc(svc.serveHealth))
	mux.Handle("GET /health/detailed", http.HandlerFunc(svc.serveHealthDetailed))
	mux.Handle("GET /health/ready", http.HandlerFunc(svc.serveHealthReady))
	mux.Handle("GET /ping", http.HandlerFunc(svc.servePing))
	mux.Handle("/", http.HandlerFunc(svc.serveNotFound))

	svc.srv = &http.Server{
		Addr:              c.BindAddr,
		Handler:           svc.middleware(mux),
		ErrorLog:          slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
		ReadTimeout:       c.Timeout,
		WriteTimeout:      c.Timeout,
		IdleTimeout:       c.Timeout,
		ReadHeaderTimeout: c.Timeout,
		MaxHeaderBytes:    c.MaxHeaderBytes,
	}

	return svc
}

// Handler returns the root handler of the service, for tests.
func (svc *Service) Handler() (h http.Handler) {
	return svc.srv.Handler
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// serving but does not wait for the listener to actually go online.  err is
// always nil; if the listener fails to start, the serving goroutine panics.
func (svc *Service) Start(ctx context.Context) (err error) {
	go mustStartServer(svc.srv)

	svc.logger.InfoContext(ctx, "listening", "addr", svc.srv.Addr)

	return nil
}

// mustStartServer starts srv and panics on any error, bringing down the whole
// service.
func mustStartServer(srv *http.Server) {
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

// Shutdown implements the [service.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	err = svc.srv.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("public server shutdown: %w", err)
	}

	svc.logger.InfoContext(ctx, "server is shutdown")

	return nil
}
