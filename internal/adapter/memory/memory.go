// Package memory provides in-process implementations of the storage
// interfaces, for dry runs and tests. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/open-data-elt/internal/analytics"
	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// RawSink keeps appended raw records in memory.
type RawSink struct {
	name string

	mu      sync.Mutex
	records []domain.RawRecord
	err     error
}

// NewRawSink creates an empty sink reporting itself as name.
func NewRawSink(name string) *RawSink {
	return &RawSink{name: name}
}

// Name implements ingest.RawSink.
func (s *RawSink) Name() string { return s.name }

// Append implements ingest.RawSink.
func (s *RawSink) Append(_ context.Context, rec domain.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return &domain.PersistenceError{Sink: s.name, Err: s.err}
	}
	s.records = append(s.records, rec)
	return nil
}

// FailWith makes every following Append fail with err. Pass nil to recover.
func (s *RawSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Records returns a copy of everything appended so far.
func (s *RawSink) Records() []domain.RawRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Warehouse implements pipeline.Warehouse in memory.
type Warehouse struct {
	mu      sync.RWMutex
	raw     map[domain.TableRef][]domain.RawRecord
	schools map[domain.TableRef][]domain.SchoolRow
	views   map[domain.TableRef]domain.TableRef
}

// NewWarehouse creates an empty warehouse.
func NewWarehouse() *Warehouse {
	return &Warehouse{
		raw:     make(map[domain.TableRef][]domain.RawRecord),
		schools: make(map[domain.TableRef][]domain.SchoolRow),
		views:   make(map[domain.TableRef]domain.TableRef),
	}
}

// CheckReadiness always succeeds.
func (w *Warehouse) CheckReadiness(context.Context) error { return nil }

// AppendRaw implements pipeline.Warehouse.
func (w *Warehouse) AppendRaw(_ context.Context, table domain.TableRef, rec domain.RawRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.raw[table] = append(w.raw[table], rec)
	return nil
}

// RawRecords implements pipeline.Warehouse.
func (w *Warehouse) RawRecords(_ context.Context, table domain.TableRef, from, to time.Time) ([]domain.RawRecord, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []domain.RawRecord
	for _, rec := range w.raw[table] {
		if !rec.IngestedAt.Before(from) && rec.IngestedAt.Before(to) {
			out = append(out, rec)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.RawRecord) int { return a.IngestedAt.Compare(b.IngestedAt) })
	return out, nil
}

// ReplaceSchools implements pipeline.Warehouse.
func (w *Warehouse) ReplaceSchools(_ context.Context, table domain.TableRef, rows []domain.SchoolRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schools[table] = slices.Clone(rows)
	return nil
}

// Schools implements pipeline.Warehouse.
func (w *Warehouse) Schools(_ context.Context, table domain.TableRef) ([]domain.SchoolRow, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rows, ok := w.schools[table]
	if !ok {
		return nil, &domain.PersistenceError{Sink: "memory", Err: fmt.Errorf("table %s does not exist", table)}
	}
	return slices.Clone(rows), nil
}

// ReplaceView implements pipeline.Warehouse. Views are evaluated on read.
func (w *Warehouse) ReplaceView(_ context.Context, view string, source domain.TableRef) error {
	if !slices.Contains(analytics.ViewNames, view) {
		return fmt.Errorf("unknown view %q", view)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.views[source.In(view)] = source
	return nil
}

// ViewSource reports which table a view reads from.
func (w *Warehouse) ViewSource(view domain.TableRef) (domain.TableRef, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	src, ok := w.views[view]
	return src, ok
}

// WordStore implements words.Store in memory.
type WordStore struct {
	mu    sync.RWMutex
	words []domain.WordEntry
}

// NewWordStore creates an empty word store.
func NewWordStore() *WordStore {
	return &WordStore{}
}

// Add appends entry and returns the new total.
func (s *WordStore) Add(_ context.Context, entry domain.WordEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.words = append(s.words, entry)
	return len(s.words), nil
}

// List returns a copy of the stored words in insertion order.
func (s *WordStore) List(context.Context) ([]domain.WordEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.words), nil
}

// Clear removes every word and returns how many there were.
func (s *WordStore) Clear(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.words)
	s.words = nil
	return n, nil
}

// Ping always succeeds.
func (s *WordStore) Ping(context.Context) error { return nil }
