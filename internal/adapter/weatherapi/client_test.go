package weatherapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/open-data-elt/internal/adapter/fetch"
	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(&recordingGetter{}, "https://api.weatherapi.com/v1/history.json", "")
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "API_KEY", ce.Key)
}

func TestNewClient_UpgradesToHTTPS(t *testing.T) {
	c, err := NewClient(&recordingGetter{}, "http://api.weatherapi.com/v1/history.json", "k")
	require.NoError(t, err)
	assert.Equal(t, "https://api.weatherapi.com/v1/history.json", c.BaseURL())

	c, err = NewClient(&recordingGetter{}, "http://127.0.0.1:8080/history", "k")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/history", c.BaseURL(), "other hosts are left alone")
}

func TestClient_History_Params(t *testing.T) {
	g := &recordingGetter{body: json.RawMessage(`{}`)}
	c, err := NewClient(g, "https://api.weatherapi.com/v1/history.json", "k")
	require.NoError(t, err)

	_, err = c.History(context.Background(), "59.3293,18.0686", "2025-08-19")
	require.NoError(t, err)

	assert.Equal(t, Source, g.source)
	assert.Equal(t, "k", g.params.Get("key"))
	assert.Equal(t, "59.3293,18.0686", g.params.Get("q"))
	assert.Equal(t, "2025-08-19", g.params.Get("dt"))
}

func TestClient_History_OverHTTP(t *testing.T) {
	const payload = `{"location":{"localtime":"2025-08-19 12:00"},"forecast":{"forecastday":[{"hour":[]}]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/history.json", r.URL.Path)
		assert.Equal(t, "Stockholm", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	getter := fetch.NewClient(time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	c, err := NewClient(getter, srv.URL+"/v1/history.json", "k")
	require.NoError(t, err)

	got, err := c.History(context.Background(), "Stockholm", "2025-08-19")
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(got))
}

// --- mocks ---

type recordingGetter struct {
	source string
	params url.Values
	body   json.RawMessage
	err    error
}

func (g *recordingGetter) GetJSON(_ context.Context, source, _ string, params url.Values) (json.RawMessage, error) {
	g.source = source
	g.params = params
	return g.body, g.err
}
