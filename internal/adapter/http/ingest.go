package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/open-data-elt/internal/adapter/file"
	"github.com/couchcryptid/open-data-elt/internal/ingest"
)

// Ingester is the weather ingestion service behind the routes.
type Ingester interface {
	Defaults() ingest.Query
	Fetch(ctx context.Context, q ingest.Query) (json.RawMessage, ingest.Query, error)
	FetchAndWrite(ctx context.Context, q ingest.Query, filename string) (ingest.WriteResult, error)
	Ingest(ctx context.Context, q ingest.Query) (ingest.Report, error)
}

// IngestRoutes serves the weather ingestion API.
type IngestRoutes struct {
	svc       Ingester
	hasAPIKey bool
	logger    *slog.Logger
}

func NewIngestRoutes(svc Ingester, hasAPIKey bool, logger *slog.Logger) *IngestRoutes {
	return &IngestRoutes{svc: svc, hasAPIKey: hasAPIKey, logger: logger}
}

// Register implements Routes.
func (h *IngestRoutes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /weather", h.handleWeather)
	mux.HandleFunc("GET /weather/write", h.handleWrite)
	mux.HandleFunc("POST /weather/write", h.handleWrite)
	mux.HandleFunc("GET /ingestion", h.handleIngestion)
}

func (h *IngestRoutes) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "Weather Ingestion API",
		"version": "1.0.0",
	})
}

func (h *IngestRoutes) handleHealth(w http.ResponseWriter, _ *http.Request) {
	d := h.svc.Defaults()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"has_api_key":      h.hasAPIKey,
		"default_location": d.Location,
		"default_date":     d.Date,
	})
}

func (h *IngestRoutes) handleWeather(w http.ResponseWriter, r *http.Request) {
	payload, _, err := h.svc.Fetch(r.Context(), queryFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload) //nolint:errcheck // client went away
}

func (h *IngestRoutes) handleWrite(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = file.DefaultFilename
	}
	res, err := h.svc.FetchAndWrite(r.Context(), queryFrom(r), filename)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleIngestion answers 200 when at least one raw store took the record and
// 500 when none did; the body always carries the per-sink outcomes.
func (h *IngestRoutes) handleIngestion(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Ingest(r.Context(), queryFrom(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	status := http.StatusOK
	if report.Status == ingest.StatusFailed {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, report)
}

func queryFrom(r *http.Request) ingest.Query {
	v := r.URL.Query()
	return ingest.Query{Location: v.Get("location"), Date: v.Get("date")}
}
