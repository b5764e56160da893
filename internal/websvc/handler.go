package websvc

import (
	"net/http"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/redron/dispatch/internal/dispatch"
	"github.com/redron/dispatch/internal/errcoll"
)

// serveDispatch handles the GET / endpoint: the dispatch itself.  An engine
// error never surfaces to the visitor; the emergency redirect is issued
// instead.
func (svc *Service) serveDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := svc.dispatcher.Dispatch(ctx, &dispatch.Request{
		Query:        r.URL.Query(),
		RemoteAddr:   r.RemoteAddr,
		ForwardedFor: r.Header.Get(httphdr.XForwardedFor),
	})
	if err != nil {
		svc.metrics.IncrementEmergencies(ctx)
		errcoll.Collect(ctx, svc.errColl, svc.logger, "dispatching", err)

		http.Redirect(w, r, dispatch.EmergencyRedirectURL, http.StatusFound)

		return
	}

	http.Redirect(w, r, res.URL, http.StatusFound)
}
