package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "open_data_elt"

// Metrics holds the Prometheus collectors shared by the ingest service,
// the ELT job and the word service.
type Metrics struct {
	// Upstream fetches.
	FetchRequests *prometheus.CounterVec   // labels: source, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: source

	// Raw store writes.
	SinkWrites *prometheus.CounterVec // labels: sink, outcome={success,error}

	// ELT job.
	TransformRows   prometheus.Counter
	TransformErrors prometheus.Counter
	StageDuration   *prometheus.HistogramVec // labels: stage={extract_load,transform,views}
	Runs            *prometheus.CounterVec   // labels: outcome={success,error}

	// Word service.
	Words prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// Collectors lists every collector, for registration or pushing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchRequests,
		m.FetchDuration,
		m.SinkWrites,
		m.TransformRows,
		m.TransformErrors,
		m.StageDuration,
		m.Runs,
		m.Words,
	}
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Upstream API requests by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Raw store writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		TransformRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_rows_total",
			Help:      "Structured rows produced by the transform stage.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Transform runs aborted by a casting failure.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each ELT stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "ELT runs by outcome.",
		}, []string{"outcome"}),
		Words: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "words_stored",
			Help:      "Number of words currently in the word store.",
		}),
	}
}

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
