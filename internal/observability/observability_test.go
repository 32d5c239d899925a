package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("stored", "sink", "full")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "stored", line["msg"])
	assert.Equal(t, "full", line["sink"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "DEBUG", "text")

	logger.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestMetrics_Collectors(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.FetchRequests))
	for _, c := range m.Collectors()[1:] {
		require.NoError(t, reg.Register(c))
	}

	m.SinkWrites.WithLabelValues("full", Outcome(nil)).Inc()
	m.SinkWrites.WithLabelValues("hourly", Outcome(errors.New("boom"))).Inc()
	m.Words.Set(3)

	assert.InDelta(t, 1, testutil.ToFloat64(m.SinkWrites.WithLabelValues("full", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SinkWrites.WithLabelValues("hourly", OutcomeError)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.Words), 0)
}
