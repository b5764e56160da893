package websvc

import (
	"net/http"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/redron/dispatch/internal/analytics"
	"github.com/redron/dispatch/internal/clickstat"
	"github.com/redron/dispatch/internal/errcoll"
)

// serveProcess handles the GET /api/process endpoint: a manual, rate-limited
// run of the ranking refresh.
func (svc *Service) serveProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !svc.procLim.Allow() {
		svc.writeJSON(ctx, w, http.StatusTooManyRequests, &errorResponse{
			Error: "too many requests",
		})

		return
	}

	m, err := svc.refresher.RefreshNow(ctx)
	if err != nil {
		errcoll.Collect(ctx, svc.errColl, svc.logger, "manual refresh", err)
		svc.writeError(ctx, w, http.StatusBadGateway, err)

		return
	}

	msg := "rankings refreshed"
	if m == nil {
		msg = "no analytics data; rankings unchanged"
	}

	svc.writeJSON(ctx, w, http.StatusOK, &successResponse{
		Data:    m,
		Message: msg,
		Success: true,
	})
}

// statsData is the data block of the GET /api/stats response.
type statsData struct {
	GAM     *analytics.Totals         `json:"gam"`
	Clicks  *clickstat.Summary        `json:"clicks"`
	Traffic []*analytics.DomainTotals `json:"traffic"`
}

// serveStats handles the GET /api/stats endpoint: today's account totals, the
// click summary, and the per-domain traffic.
func (svc *Service) serveStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day := svc.clock.Now().UTC()

	gam, err := svc.analytics.TotalStats(ctx, day)
	if err != nil {
		svc.logger.ErrorContext(ctx, "querying totals", slogutil.KeyError, err)
		svc.writeError(ctx, w, storeErrorCode(err), err)

		return
	}

	clicks, err := svc.clicks.Totals(ctx)
	if err != nil {
		svc.logger.ErrorContext(ctx, "querying clicks", slogutil.KeyError, err)
		svc.writeError(ctx, w, storeErrorCode(err), err)

		return
	}

	traffic, err := svc.analytics.DomainTraffic(ctx, day)
	if err != nil {
		svc.logger.ErrorContext(ctx, "querying traffic", slogutil.KeyError, err)
		svc.writeError(ctx, w, storeErrorCode(err), err)

		return
	}

	svc.writeJSON(ctx, w, http.StatusOK, &successResponse{
		Data: &statsData{
			GAM:     gam,
			Clicks:  clicks,
			Traffic: traffic,
		},
		Success: true,
	})
}

// serveDistinct handles the GET /api/distinct/{field} endpoint.
func (svc *Service) serveDistinct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	field := r.PathValue("field")

	vals, err := svc.analytics.Distinct(ctx, field)
	if err != nil {
		if errors.Is(err, analytics.ErrBadField) {
			svc.writeJSON(ctx, w, http.StatusBadRequest, &errorResponse{
				Error:       err.Error(),
				ValidFields: analytics.ValidDistinctFields,
			})

			return
		}

		svc.logger.ErrorContext(ctx, "querying distinct", slogutil.KeyError, err)
		svc.writeError(ctx, w, storeErrorCode(err), err)

		return
	}

	svc.writeJSON(ctx, w, http.StatusOK, &successResponse{
		Data:    vals,
		Success: true,
	})
}

// serveLinks handles the GET /api/links endpoint: the persisted best-link
// collection, newest first.
func (svc *Service) serveLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	links, err := svc.links.All(ctx)
	if err != nil {
		svc.logger.ErrorContext(ctx, "querying links", slogutil.KeyError, err)
		svc.writeError(ctx, w, storeErrorCode(err), err)

		return
	}

	svc.writeJSON(ctx, w, http.StatusOK, &successResponse{
		Data:    links,
		Success: true,
	})
}

// serveNotFound handles everything that does not match a route.
func (svc *Service) serveNotFound(w http.ResponseWriter, r *http.Request) {
	svc.writeJSON(r.Context(), w, http.StatusNotFound, &errorResponse{
		Error: "not found",
	})
}
