package websvc

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/redron/dispatch/internal/dispatch"
	"github.com/redron/dispatch/internal/redhttp"
)

// middleware wraps the route mux with the concerns common to every response:
// the identifying headers, the favicon short-circuit, the degraded-mode gate,
// request logging, and panic recovery.
func (svc *Service) middleware(h http.Handler) (wrapped http.Handler) {
	f := func(w http.ResponseWriter, r *http.Request) {
		respHdr := w.Header()
		respHdr.Set(httphdr.Server, redhttp.UserAgent())
		respHdr.Set(httphdr.AccessControlAllowOrigin, svc.corsOrigin)

		// Bots and browsers probe for favicons on every path.  Cut them off
		// before any side effects.
		if strings.Contains(r.RequestURI, "favicon") {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		if svc.degraded && isGated(r.URL.Path) {
			svc.writeJSON(r.Context(), w, http.StatusServiceUnavailable, &errorResponse{
				Error: "service unavailable",
			})

			return
		}

		reqID := redhttp.NewRequestID()
		ctx := redhttp.WithRequestID(r.Context(), reqID)
		r = r.WithContext(ctx)

		l := svc.logger.With(
			"raddr", r.RemoteAddr,
			"method", r.Method,
			"request_uri", r.RequestURI,
			"req_id", reqID,
		)

		rw := &codeRecorderResponseWriter{
			ResponseWriter: w,
		}

		l.DebugContext(ctx, "started")
		defer func() { l.DebugContext(ctx, "finished", "code", rw.code) }()

		defer svc.recoverAndRespond(rw, r)

		h.ServeHTTP(rw, r)
	}

	return http.HandlerFunc(f)
}

// isGated reports whether path is unavailable in degraded mode.  The health
// endpoints stay live.
func isGated(path string) (ok bool) {
	return path == "/" || strings.HasPrefix(path, "/api/")
}

// recoverAndRespond recovers a handler panic and turns it into a response: the
// emergency redirect on the dispatch route and a JSON 500 elsewhere.  Panics
// are collected along with the stack.
func (svc *Service) recoverAndRespond(w *codeRecorderResponseWriter, r *http.Request) {
	v := recover()
	if v == nil {
		return
	}

	ctx := r.Context()

	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", v)
	}

	l := svc.logger
	if id, idOK := redhttp.RequestIDFromContext(ctx); idOK {
		l = l.With("req_id", id)
	}

	svc.errColl.Collect(ctx, err)
	l.ErrorContext(ctx, "recovered from panic", slogutil.KeyError, err)
	slogutil.PrintStack(ctx, l, slog.LevelError)

	if w.code != 0 {
		// The handler already started the response; there is nothing safe
		// left to write.
		return
	}

	if r.URL.Path == "/" {
		svc.metrics.IncrementEmergencies(ctx)
		http.Redirect(w, r, dispatch.EmergencyRedirectURL, http.StatusFound)

		return
	}

	svc.writeError(ctx, w, http.StatusInternalServerError, err)
}

// codeRecorderResponseWriter wraps an [http.ResponseWriter] allowing to save
// the response code.
type codeRecorderResponseWriter struct {
	http.ResponseWriter

	code int
}

// type check
var _ http.ResponseWriter = (*codeRecorderResponseWriter)(nil)

// WriteHeader implements [http.ResponseWriter] for
// *codeRecorderResponseWriter.
func (w *codeRecorderResponseWriter) WriteHeader(code int) {
	w.code = code

	w.ResponseWriter.WriteHeader(code)
}
