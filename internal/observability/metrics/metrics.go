package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FrontdeskMetrics exposes counters/histograms for the booking desk flows.
type FrontdeskMetrics struct {
	voiceClauses      *prometheus.CounterVec
	submissions       *prometheus.CounterVec
	submitLatency     *prometheus.HistogramVec
	suggestionResults prometheus.Histogram
	rosterRefreshes   *prometheus.CounterVec
	rosterSize        *prometheus.GaugeVec
	openSessions      prometheus.Gauge
}

func NewFrontdeskMetrics(reg prometheus.Registerer) *FrontdeskMetrics {
	m := &FrontdeskMetrics{
		voiceClauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "voice",
			Name:      "clauses_total",
			Help:      "Voice command clauses by field and outcome",
		}, []string{"field", "outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "opd",
			Name:      "submissions_total",
			Help:      "OPD booking submissions by mode and outcome",
		}, []string{"mode", "outcome"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "opd",
			Name:      "submit_latency_seconds",
			Help:      "Latency of OPD booking submissions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		suggestionResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "patients",
			Name:      "suggestion_results",
			Help:      "Number of patients suggested per name lookup",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		rosterRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "roster",
			Name:      "refresh_total",
			Help:      "Roster snapshots applied per collection",
		}, []string{"collection"}),
		rosterSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Subsystem: "roster",
			Name:      "entries",
			Help:      "Entries in the latest roster snapshot",
		}, []string{"collection"}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Subsystem: "opd",
			Name:      "open_sessions",
			Help:      "Open OPD form sessions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.voiceClauses,
		m.submissions,
		m.submitLatency,
		m.suggestionResults,
		m.rosterRefreshes,
		m.rosterSize,
		m.openSessions,
	)
	return m
}

func (m *FrontdeskMetrics) ObserveVoiceClause(field, outcome string) {
	if m == nil {
		return
	}
	m.voiceClauses.WithLabelValues(field, outcome).Inc()
}

func (m *FrontdeskMetrics) ObserveSubmission(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(mode, outcome).Inc()
	m.submitLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *FrontdeskMetrics) ObserveSuggestions(count int) {
	if m == nil {
		return
	}
	m.suggestionResults.Observe(float64(count))
}

func (m *FrontdeskMetrics) ObserveRosterRefresh(collection string, size int) {
	if m == nil {
		return
	}
	m.rosterRefreshes.WithLabelValues(collection).Inc()
	m.rosterSize.WithLabelValues(collection).Set(float64(size))
}

func (m *FrontdeskMetrics) SetOpenSessions(n int) {
	if m == nil {
		return
	}
	m.openSessions.Set(float64(n))
}
