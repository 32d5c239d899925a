package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/words"
)

// WordService is the word store behind the routes.
type WordService interface {
	Add(ctx context.Context, word string) (domain.WordEntry, int, error)
	List(ctx context.Context) ([]domain.WordEntry, error)
	Stats(ctx context.Context) (words.Stats, error)
	Clear(ctx context.Context) (int, error)
}

// WordRoutes serves the word database API.
type WordRoutes struct {
	svc    WordService
	logger *slog.Logger
}

func NewWordRoutes(svc WordService, logger *slog.Logger) *WordRoutes {
	return &WordRoutes{svc: svc, logger: logger}
}

// Register implements Routes.
func (h *WordRoutes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /words", h.handleAdd)
	mux.HandleFunc("GET /words", h.handleList)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("DELETE /clear", h.handleClear)
}

func (h *WordRoutes) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "word-database"})
}

func (h *WordRoutes) handleAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Word string `json:"word"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	entry, total, err := h.svc.Add(r.Context(), body.Word)
	if errors.Is(err, words.ErrEmptyWord) {
		writeJSON(w, http.StatusBadRequest, errorBody("Inget ord skickat"))
		return
	}
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Ord sparat i databas",
		"word":        entry.Word,
		"total_words": total,
	})
}

func (h *WordRoutes) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"words": entries, "count": len(entries)})
}

func (h *WordRoutes) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if stats.TotalWords == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Inga ord i databasen ännu"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *WordRoutes) handleClear(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Clear(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Databasen rensad - %d ord borttagna", n)})
}
