package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/open-data-elt/internal/adapter/file"
	httpadapter "github.com/couchcryptid/open-data-elt/internal/adapter/http"
	"github.com/couchcryptid/open-data-elt/internal/adapter/memory"
	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/ingest"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

const weatherPayload = `{"location":{"name":"Stockholm","localtime":"2025-08-19 12:00"},"forecast":{"forecastday":[{"hour":[{"time_epoch":1755554400,"temp_c":14.2}]}]}}`

type stubFetcher struct {
	err            error
	location, date string
}

func (s *stubFetcher) History(_ context.Context, location, date string) (json.RawMessage, error) {
	s.location, s.date = location, date
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(weatherPayload), nil
}

type ingestFixture struct {
	srv     *httpadapter.Server
	fetcher *stubFetcher
	full    *memory.RawSink
	hourly  *memory.RawSink
	dir     string
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		fetcher: &stubFetcher{},
		full:    memory.NewRawSink("full"),
		hourly:  memory.NewRawSink("hourly"),
		dir:     t.TempDir(),
	}
	svc := ingest.NewService(f.fetcher, file.NewStore(f.dir), []ingest.RawSink{f.full, f.hourly},
		ingest.Options{Source: "weatherapi", DefaultLocation: "59.3293,18.0686", DefaultDate: "2025-08-19"},
		discardLogger(), observability.NewMetricsForTesting())
	f.srv = httpadapter.NewServer(":0", &mockReadiness{}, discardLogger(),
		httpadapter.NewIngestRoutes(svc, true, discardLogger()))
	return f
}

func TestIngest_Root(t *testing.T) {
	f := newIngestFixture(t)
	rec := serve(t, f.srv, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "Weather Ingestion API", body["service"])
	assert.Equal(t, "1.0.0", body["version"])

	assert.Equal(t, http.StatusNotFound, serve(t, f.srv, http.MethodGet, "/nope", nil).Code)
}

func TestIngest_Health(t *testing.T) {
	f := newIngestFixture(t)
	rec := serve(t, f.srv, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["has_api_key"])
	assert.Equal(t, "59.3293,18.0686", body["default_location"])
	assert.Equal(t, "2025-08-19", body["default_date"])
}

func TestIngest_WeatherPassesPayloadThrough(t *testing.T) {
	f := newIngestFixture(t)
	rec := serve(t, f.srv, http.MethodGet, "/weather?location=Lund&date=2025-08-01", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, weatherPayload, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Lund", f.fetcher.location)
	assert.Equal(t, "2025-08-01", f.fetcher.date)
}

func TestIngest_WeatherDefaults(t *testing.T) {
	f := newIngestFixture(t)
	rec := serve(t, f.srv, http.MethodGet, "/weather", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "59.3293,18.0686", f.fetcher.location)
	assert.Equal(t, "2025-08-19", f.fetcher.date)
}

func TestIngest_WeatherInvalidDate(t *testing.T) {
	f := newIngestFixture(t)
	rec := serve(t, f.srv, http.MethodGet, "/weather?date=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "date must be YYYY-MM-DD")
}

func TestIngest_WeatherUpstreamFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.fetcher.err = &domain.TransportError{Endpoint: "https://api.weatherapi.com/v1/history.json", StatusCode: 401, Err: errors.New("key=secret rejected")}

	rec := serve(t, f.srv, http.MethodGet, "/weather", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, map[string]string{"error": "Upstream API error"}, decode[map[string]string](t, rec))
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestIngest_WriteFile(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			f := newIngestFixture(t)
			rec := serve(t, f.srv, method, "/weather/write?location=Lund&filename=lund.json", nil)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, map[string]string{
				"message":  "written",
				"file":     "lund.json",
				"location": "Lund",
				"date":     "2025-08-19",
			}, decode[map[string]string](t, rec))

			got, err := os.ReadFile(filepath.Join(f.dir, "lund.json"))
			require.NoError(t, err)
			assert.Equal(t, weatherPayload, string(got))
		})
	}
}

func TestIngest_WriteFileDefaultName(t *testing.T) {
	f := newIngestFixture(t)
	rec := serve(t, f.srv, http.MethodPost, "/weather/write", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.FileExists(t, filepath.Join(f.dir, file.DefaultFilename))
}

func TestIngest_WriteFileRejectsTraversal(t *testing.T) {
	f := newIngestFixture(t)
	rec := serve(t, f.srv, http.MethodGet, "/weather/write?filename=../escape.json", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(f.dir), "escape.json"))
}

func TestIngest_Ingestion(t *testing.T) {
	f := newIngestFixture(t)
	rec := serve(t, f.srv, http.MethodGet, "/ingestion?location=Stockholm&date=2025-08-19", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[ingest.Report](t, rec)
	assert.Equal(t, ingest.StatusOK, report.Status)
	assert.Equal(t, []string{"full", "hourly"}, report.Stored)

	require.Len(t, f.full.Records(), 1)
	rec0 := f.full.Records()[0]
	assert.Equal(t, weatherPayload, string(rec0.Payload))
	assert.Equal(t, map[string]string{"location": "Stockholm", "date": "2025-08-19"}, rec0.Params)
	assert.WithinDuration(t, time.Now(), rec0.IngestedAt, time.Minute)
}

func TestIngest_IngestionPartial(t *testing.T) {
	f := newIngestFixture(t)
	f.hourly.FailWith(errors.New("relation does not exist"))

	rec := serve(t, f.srv, http.MethodGet, "/ingestion", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[ingest.Report](t, rec)
	assert.Equal(t, ingest.StatusPartial, report.Status)
	assert.Equal(t, []string{"full"}, report.Stored)
	assert.Len(t, f.full.Records(), 1)
}

func TestIngest_IngestionAllFailed(t *testing.T) {
	f := newIngestFixture(t)
	f.full.FailWith(errors.New("down"))
	f.hourly.FailWith(errors.New("down"))

	rec := serve(t, f.srv, http.MethodGet, "/ingestion", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ingest.StatusFailed, decode[ingest.Report](t, rec).Status)
}

func TestIngest_IngestionUpstreamFailureWritesNothing(t *testing.T) {
	f := newIngestFixture(t)
	f.fetcher.err = &domain.TransportError{Endpoint: "weatherapi", Err: errors.New("timeout")}

	rec := serve(t, f.srv, http.MethodGet, "/ingestion", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, f.full.Records())
	assert.Empty(t, f.hourly.Records())
}
