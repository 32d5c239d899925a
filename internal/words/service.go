// Package words stores submitted words and reports simple statistics.
package words

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

// ErrEmptyWord is returned when a submitted word is blank after trimming.
var ErrEmptyWord = errors.New("empty word")

// Store holds words in insertion order.
type Store interface {
	Add(ctx context.Context, entry domain.WordEntry) (int, error)
	List(ctx context.Context) ([]domain.WordEntry, error)
	Clear(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Stats summarizes the stored words. Zero values when the store is empty.
type Stats struct {
	TotalWords      int     `json:"total_words"`
	TotalCharacters int     `json:"total_characters"`
	AverageLength   float64 `json:"average_length"`
	LongestWord     string  `json:"longest_word"`
	LongestLength   int     `json:"longest_length"`
}

// Service is the word store behind the HTTP handlers. The store is injected
// so each process owns exactly one.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewService(store Store, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: metrics}
}

// Add trims word, stores it and returns the stored entry with the new total.
func (s *Service) Add(ctx context.Context, word string) (domain.WordEntry, int, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return domain.WordEntry{}, 0, ErrEmptyWord
	}
	entry := domain.NewWordEntry(word)
	total, err := s.store.Add(ctx, entry)
	if err != nil {
		return domain.WordEntry{}, 0, err
	}
	s.metrics.Words.Set(float64(total))
	s.logger.Debug("word stored", "length", entry.Length, "total", total)
	return entry, total, nil
}

// List returns every stored word. The slice is owned by the caller.
func (s *Service) List(ctx context.Context) ([]domain.WordEntry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.WordEntry{}
	}
	return entries, nil
}

// Stats computes totals over the stored words. The first of equally long
// words is reported as the longest.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(entries), nil
}

// ComputeStats is the pure part of Stats.
func ComputeStats(entries []domain.WordEntry) Stats {
	var st Stats
	for _, e := range entries {
		st.TotalWords++
		st.TotalCharacters += e.Length
		if e.Length > st.LongestLength || st.LongestWord == "" {
			st.LongestWord = e.Word
			st.LongestLength = e.Length
		}
	}
	if st.TotalWords > 0 {
		avg := float64(st.TotalCharacters) / float64(st.TotalWords)
		st.AverageLength = math.Round(avg*100) / 100
	}
	return st
}

// Clear removes all words and returns how many were removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.Words.Set(0)
	s.logger.Info("word store cleared", "removed", n)
	return n, nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
