// Package metrics exposes Prometheus instrumentation for the dictation daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "doctas"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ListenSessions     prometheus.Counter
	Restarts           *prometheus.CounterVec
	RecognitionErrors  *prometheus.CounterVec
	HardStops          *prometheus.CounterVec
	Utterances         prometheus.Counter
	DuplicateResults   prometheus.Counter
	Submissions        *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	State              *prometheus.GaugeVec
	RecordsPublished   *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ListenSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listen_sessions_total",
			Help:      "Recognition sessions issued to the engine, restarts included",
		}),
		Restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Automatic restarts scheduled, by cause",
		}, []string{"cause"}),
		RecognitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Recognizer errors received while listening",
		}, []string{"code", "class"}),
		HardStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hard_stops_total",
			Help:      "Sessions ended in the error state, by reason",
		}, []string{"reason"}),
		Utterances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Final results appended to the transcript",
		}),
		DuplicateResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_results_total",
			Help:      "Final results dropped as repeats of the previous one",
		}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Transcript submissions by outcome",
		}, []string{"outcome"}),
		SubmissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time spent waiting on the extraction service",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise",
		}, []string{"state"}),
		RecordsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Extracted records handed to the record sink",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.ListenSessions, m.Restarts, m.RecognitionErrors, m.HardStops,
		m.Utterances, m.DuplicateResults, m.Submissions, m.SubmissionDuration,
		m.State, m.RecordsPublished,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ListenSession() {
	if m == nil {
		return
	}
	m.ListenSessions.Inc()
}

func (m *Metrics) Restart(cause string) {
	if m == nil {
		return
	}
	m.Restarts.WithLabelValues(cause).Inc()
}

func (m *Metrics) RecognitionError(code, class string) {
	if m == nil {
		return
	}
	m.RecognitionErrors.WithLabelValues(code, class).Inc()
}

func (m *Metrics) HardStop(reason string) {
	if m == nil {
		return
	}
	m.HardStops.WithLabelValues(reason).Inc()
}

func (m *Metrics) Utterance() {
	if m == nil {
		return
	}
	m.Utterances.Inc()
}

func (m *Metrics) DuplicateResult() {
	if m == nil {
		return
	}
	m.DuplicateResults.Inc()
}

func (m *Metrics) Submission(err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Submissions.WithLabelValues(outcome).Inc()
	m.SubmissionDuration.Observe(d.Seconds())
}

// SetState marks current as the only active state.
func (m *Metrics) SetState(current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) RecordPublished(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.RecordsPublished.WithLabelValues(outcome).Inc()
}
