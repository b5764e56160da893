package websvc

import (
	"io"
	"net/http"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/redron/dispatch/internal/redhttp"
)

// Health statuses.
const (
	statusOK       = "ok"
	statusReady    = "ready"
	statusDegraded = "degraded"
	statusDown     = "down"
	statusUp       = "up"
)

// healthResponse is the body of the health endpoints.
type healthResponse struct {
	Checks map[string]string `json:"checks,omitempty"`
	Status string            `json:"status"`
}

// serveHealth handles the GET /health endpoint: liveness only, always 200.
func (svc *Service) serveHealth(w http.ResponseWriter, r *http.Request) {
	svc.writeJSON(r.Context(), w, http.StatusOK, &healthResponse{
		Status: statusOK,
	})
}

// serveHealthDetailed handles the GET /health/detailed endpoint: it pings the
// shared cache and the database and reports 503 when either is down.
func (svc *Service) serveHealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"cache":    statusUp,
		"database": statusUp,
	}
	code := http.StatusOK

	err := svc.kv.Ping(ctx)
	if err != nil {
		svc.logger.WarnContext(ctx, "cache ping", slogutil.KeyError, err)
		checks["cache"] = statusDown
		code = http.StatusServiceUnavailable
	}

	if svc.db == nil {
		checks["database"] = statusDown
		code = http.StatusServiceUnavailable
	} else if err = svc.db.PingContext(ctx); err != nil {
		svc.logger.WarnContext(ctx, "database ping", slogutil.KeyError, err)
		checks["database"] = statusDown
		code = http.StatusServiceUnavailable
	}

	status := statusOK
	if code != http.StatusOK {
		status = statusDegraded
	}

	svc.writeJSON(ctx, w, code, &healthResponse{
		Checks: checks,
		Status: status,
	})
}

// serveHealthReady handles the GET /health/ready endpoint.
func (svc *Service) serveHealthReady(w http.ResponseWriter, r *http.Request) {
	if svc.degraded {
		svc.writeJSON(r.Context(), w, http.StatusServiceUnavailable, &healthResponse{
			Status: statusDegraded,
		})

		return
	}

	svc.writeJSON(r.Context(), w, http.StatusOK, &healthResponse{
		Status: statusReady,
	})
}

// servePing handles the GET /ping endpoint.
func (svc *Service) servePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(httphdr.ContentType, redhttp.HdrValTextPlain)
	w.WriteHeader(http.StatusOK)

	_, err := io.WriteString(w, "pong")
	if err != nil {
		ctx := r.Context()
		svc.logger.DebugContext(ctx, "writing ping response", slogutil.KeyError, err)
	}
}
