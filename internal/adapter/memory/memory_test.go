package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

var rawTable = domain.TableRef{Dataset: "raw_data", Table: "sample_data"}

func TestRawSink(t *testing.T) {
	ctx := context.Background()
	s := NewRawSink("full")
	assert.Equal(t, "full", s.Name())

	require.NoError(t, s.Append(ctx, domain.RawRecord{Payload: json.RawMessage(`{}`)}))

	s.FailWith(errors.New("disk full"))
	err := s.Append(ctx, domain.RawRecord{})
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "full", pe.Sink)

	s.FailWith(nil)
	require.NoError(t, s.Append(ctx, domain.RawRecord{}))
	assert.Len(t, s.Records(), 2)
}

func TestWarehouse_RawRecordsWindow(t *testing.T) {
	ctx := context.Background()
	w := NewWarehouse()
	day := time.Date(2025, 8, 19, 0, 0, 0, 0, time.UTC)

	for _, ts := range []time.Time{day.Add(25 * time.Hour), day.Add(2 * time.Hour), day, day.Add(-time.Nanosecond)} {
		require.NoError(t, w.AppendRaw(ctx, rawTable, domain.RawRecord{IngestedAt: ts}))
	}

	got, err := w.RawRecords(ctx, rawTable, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day, got[0].IngestedAt)
	assert.Equal(t, day.Add(2*time.Hour), got[1].IngestedAt)
}

func TestWarehouse_ReplaceSchools(t *testing.T) {
	ctx := context.Background()
	w := NewWarehouse()
	table := domain.TableRef{Dataset: "processed_data", Table: "schools_structured"}

	_, err := w.Schools(ctx, table)
	require.Error(t, err)

	rows := []domain.SchoolRow{{SchoolName: "A"}, {SchoolName: "B"}}
	require.NoError(t, w.ReplaceSchools(ctx, table, rows))
	rows[0].SchoolName = "mutated"
	require.NoError(t, w.ReplaceSchools(ctx, table, rows[1:]))

	got, err := w.Schools(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, []domain.SchoolRow{{SchoolName: "B"}}, got)

	require.NoError(t, w.ReplaceView(ctx, "school_summary", table))
	src, ok := w.ViewSource(table.In("school_summary"))
	assert.True(t, ok)
	assert.Equal(t, table, src)
	require.Error(t, w.ReplaceView(ctx, "school_secrets", table))
}

func TestWordStore(t *testing.T) {
	ctx := context.Background()
	s := NewWordStore()

	n, err := s.Add(ctx, domain.NewWordEntry("hej"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.Add(ctx, domain.NewWordEntry("världen"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	before, err := s.List(ctx)
	require.NoError(t, err)

	removed, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	after, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, after)
	assert.Len(t, before, 2, "earlier listings are unaffected by clear")
	assert.NoError(t, s.Ping(ctx))
}
