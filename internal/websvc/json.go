package websvc

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/redron/dispatch/internal/linkstore"
	"github.com/redron/dispatch/internal/redhttp"
)

// successResponse is the envelope of the successful API responses.
type successResponse struct {
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
	Success bool   `json:"success"`
}

// errorResponse is the envelope of the API error responses.  Stack is only
// set in development mode.
type errorResponse struct {
	Error       string   `json:"error"`
	Stack       string   `json:"stack,omitempty"`
	ValidFields []string `json:"validFields,omitempty"`
}

// writeJSON writes v as the JSON response body with the given status code.
// Encoding failures are logged only, since the header is already out.
func (svc *Service) writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set(httphdr.ContentType, redhttp.HdrValApplicationJSON)
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		svc.logger.DebugContext(ctx, "writing json response", slogutil.KeyError, err)
	}
}

// writeError writes the JSON error envelope for err with the given status
// code, attaching the stack in development mode.
func (svc *Service) writeError(ctx context.Context, w http.ResponseWriter, code int, err error) {
	resp := &errorResponse{
		Error: err.Error(),
	}
	if svc.devMode {
		resp.Stack = string(debug.Stack())
	}

	svc.writeJSON(ctx, w, code, resp)
}

// storeErrorCode maps a store error to an HTTP status code.
func storeErrorCode(err error) (code int) {
	if errors.Is(err, linkstore.ErrDuplicate) {
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}
