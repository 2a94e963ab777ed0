package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"srmsync/internal/procrun"
)

// Metrics are the session counters exported on /metrics.
type Metrics struct {
	sessions    *prometheus.CounterVec
	steps       *prometheus.HistogramVec
	invocations *prometheus.CounterVec
	changed     prometheus.Gauge
	inProgress  prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewMetrics registers the session metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srmsync",
			Name:      "sessions_total",
			Help:      "Sync sessions by outcome.",
		}, []string{"outcome"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "srmsync",
			Name:      "step_duration_seconds",
			Help:      "Duration of sync session steps.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{"step"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srmsync",
			Name:      "tool_invocations_total",
			Help:      "SRM invocations by step and outcome.",
		}, []string{"step", "outcome"}),
		changed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "srmsync",
			Name:      "last_session_changed_libraries",
			Help:      "Libraries found changed by the most recent session.",
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "srmsync",
			Name:      "session_in_progress",
			Help:      "1 while a sync session is running.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "srmsync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.steps, m.invocations, m.changed, m.inProgress, m.lastSuccess)
	}
	return m
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.inProgress.Set(1)
}

func (m *Metrics) sessionFinished(report Report) {
	if m == nil {
		return
	}
	m.inProgress.Set(0)
	m.sessions.WithLabelValues(string(report.Outcome)).Inc()
	m.changed.Set(float64(len(report.ChangedLibraries())))
	if report.Outcome == OutcomeSucceeded {
		m.lastSuccess.Set(float64(report.FinishedAt.Unix()))
	}
}

func (m *Metrics) busyRejected() {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(string(OutcomeBusy)).Inc()
}

func (m *Metrics) observeStep(step Step, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(string(step)).Observe(d.Seconds())
}

func (m *Metrics) observeInvocation(step Step, outcome procrun.Outcome) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(string(step), string(outcome)).Inc()
}
