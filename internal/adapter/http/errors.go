package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/open-data-elt/internal/adapter/file"
	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/ingest"
)

// upstreamError is all a client learns about a failed upstream call; the
// cause is logged.
const upstreamError = "Upstream API error"

// writeError maps domain errors onto status codes with a {"error": ...} body.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	var (
		cfgErr       *domain.ConfigError
		transportErr *domain.TransportError
		persistErr   *domain.PersistenceError
	)
	switch {
	case errors.Is(err, ingest.ErrInvalidQuery), errors.Is(err, file.ErrInvalidFilename):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	case errors.As(err, &transportErr):
		logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody(upstreamError))
		return
	case errors.As(err, &cfgErr), errors.As(err, &persistErr):
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
