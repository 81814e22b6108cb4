package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/foomo/sitemap-mcp/reconcile"
	"github.com/foomo/sitemap-mcp/scrape"
	"github.com/foomo/sitemap-mcp/service"
	"github.com/foomo/sitemap-mcp/sitetree"
	"github.com/foomo/sitemap-mcp/store"
	"github.com/foomo/sitemap-mcp/wordpress"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, sitetree.ErrInvalidMove),
		errors.Is(err, sitetree.ErrInvalidPatch),
		errors.Is(err, sitetree.ErrNotLeaf),
		errors.Is(err, sitetree.ErrDuplicateNode),
		errors.Is(err, service.ErrNotGhost),
		errors.Is(err, service.ErrNotScrapable):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrProjectNotFound),
		errors.Is(err, sitetree.ErrNodeNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrNoContentFound),
		errors.Is(err, reconcile.ErrTooDeep):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wordpress.ErrTransportExhausted),
		errors.Is(err, wordpress.ErrMalformedResponse),
		errors.Is(err, service.ErrScrapeFailed),
		errors.Is(err, scrape.ErrSelectorNotFound):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	h.logger.Debug(msg, zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, errorBody(service.UserMessage(err)))
}
