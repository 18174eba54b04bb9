package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowrank"

// Job outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Ingest holds ingestion collectors.
type Ingest struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	upserts       *prometheus.CounterVec
	trendFailures *prometheus.CounterVec
}

// NewIngest creates ingestion collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewIngest(reg prometheus.Registerer) *Ingest {
	m := &Ingest{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by platform, country and status.",
		}, []string{"platform", "country", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"platform", "country"}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "upserts_total",
			Help:      "Workflow records written by ingestion.",
		}, []string{"platform", "country"}),
		trendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trend",
			Name:      "fallbacks_total",
			Help:      "Trend lookups that failed and used the default trend.",
		}, []string{"country"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.runDuration, m.upserts, m.trendFailures)
	}
	return m
}

// ObserveRun records one finished ingestion run.
func (m *Ingest) ObserveRun(platform, country, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(platform, country, status).Inc()
	m.runDuration.WithLabelValues(platform, country).Observe(elapsed.Seconds())
}

// AddUpserts counts written records.
func (m *Ingest) AddUpserts(platform, country string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.upserts.WithLabelValues(platform, country).Add(float64(n))
}

// TrendFallback counts a fail-open trend substitution.
func (m *Ingest) TrendFallback(country string) {
	if m == nil {
		return
	}
	m.trendFailures.WithLabelValues(country).Inc()
}
