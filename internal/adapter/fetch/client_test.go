package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

const testSource = "test"

func testClient(timeout time.Duration) (*Client, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewClient(timeout, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func TestClient_GetJSON_Success(t *testing.T) {
	const body = `{"results": [ {"id":"1"} ]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "x", r.URL.Query().Get("fixed"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c, m := testClient(5 * time.Second)
	got, err := c.GetJSON(context.Background(), testSource, srv.URL+"/data?fixed=x", url.Values{"key": {"secret"}})
	require.NoError(t, err)

	assert.Equal(t, body, string(got), "body is returned byte for byte")
	assert.InDelta(t, 1, testutil.ToFloat64(m.FetchRequests.WithLabelValues(testSource, observability.OutcomeSuccess)), 0)
}

func TestClient_GetJSON_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":2006,"message":"API key is invalid."}}`)
	}))
	defer srv.Close()

	c, m := testClient(5 * time.Second)
	_, err := c.GetJSON(context.Background(), testSource, srv.URL, url.Values{"key": {"secret"}})

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
	assert.Contains(t, err.Error(), "API key is invalid")
	assert.NotContains(t, err.Error(), "secret")
	assert.InDelta(t, 1, testutil.ToFloat64(m.FetchRequests.WithLabelValues(testSource, observability.OutcomeError)), 0)
}

func TestClient_GetJSON_NotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	c, _ := testClient(5 * time.Second)
	_, err := c.GetJSON(context.Background(), testSource, srv.URL, nil)

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusOK, te.StatusCode)
}

func TestClient_GetJSON_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := testClient(50 * time.Millisecond)
	_, err := c.GetJSON(context.Background(), testSource, srv.URL, url.Values{"key": {"secret"}})

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.NotContains(t, err.Error(), "secret")
}

func TestClient_GetJSON_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, _ := testClient(time.Second)
	_, err := c.GetJSON(context.Background(), testSource, addr, nil)

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, addr, te.Endpoint)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxErrorBytes+10)
	assert.Len(t, truncate([]byte(long)), maxErrorBytes+3)
	assert.Equal(t, "short", truncate([]byte("short")))
}
