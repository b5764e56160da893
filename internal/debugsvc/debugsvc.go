// Package debugsvc contains the private debug HTTP API of the dispatcher: the
// health check, prometheus metrics, pprof, and manual refreshes.
package debugsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil/httputil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config is the debug HTTP service configuration structure.
type Config struct {
	// Logger is used to log the queries of the debug API.
	Logger *slog.Logger

	// Refreshers are the refreshers exposed through the manual refresh
	// endpoint, keyed by ID.
	Refreshers Refreshers

	// ListenAddr is the address of the private listener, in "host:port" form.
	ListenAddr string
}

// Service is the private debug HTTP service of the dispatcher.
type Service struct {
	logger   *slog.Logger
	refrHdlr *refreshHandler
	srv      *http.Server
}

// New returns a new properly initialized *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger: c.Logger,
		refrHdlr: &refreshHandler{
			refrs: c.Refreshers,
		},
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health-check", svc.middleware(
		http.HandlerFunc(serveHealthCheck),
		slog.LevelDebug,
	))
	mux.Handle("GET /metrics", svc.middleware(promhttp.Handler(), slog.LevelDebug))
	mux.Handle("POST /debug/refresh", svc.middleware(svc.refrHdlr, slog.LevelInfo))
	httputil.RoutePprof(mux)

	svc.srv = &http.Server{
		// #nosec G112 -- Do not set the timeouts, since debug/pprof and
		// similar debug APIs may be busy for a long time.
		Addr:     c.ListenAddr,
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
	}

	return svc
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// serving but does not wait for the listener to actually go online.  err is
// always nil; if the listener fails to start, the serving goroutine panics.
func (svc *Service) Start(ctx context.Context) (err error) {
	go func() {
		sErr := svc.srv.ListenAndServe()
		if sErr != nil && !errors.Is(sErr, http.ErrServerClosed) {
			panic(fmt.Errorf("debug server on %s: %w", svc.srv.Addr, sErr))
		}
	}()

	svc.logger.InfoContext(ctx, "listening", "addr", svc.srv.Addr)

	return nil
}

// Shutdown implements the [service.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	err = svc.srv.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("debug server shutdown: %w", err)
	}

	svc.logger.InfoContext(ctx, "server is shutdown")

	return nil
}
