package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes the quiz counters served at /metrics.
type Recorder struct {
	SessionsStarted    *prometheus.CounterVec
	SessionsCompleted  *prometheus.CounterVec
	AnswersRecorded    *prometheus.CounterVec
	SuggestionFailures *prometheus.CounterVec
	PersistOutcomes    *prometheus.CounterVec
	AIRequestDuration  *prometheus.HistogramVec
	QuestionPackSource *prometheus.CounterVec
}

// New builds a recorder and registers it with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizmind",
			Name:      "sessions_started_total",
			Help:      "Quiz sessions started, by topic.",
		}, []string{"topic"}),
		SessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizmind",
			Name:      "sessions_completed_total",
			Help:      "Quiz sessions that reached a terminal result, by topic.",
		}, []string{"topic"}),
		AnswersRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizmind",
			Name:      "answers_recorded_total",
			Help:      "Accepted answers, by outcome (correct, incorrect, timeout).",
		}, []string{"outcome"}),
		SuggestionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizmind",
			Name:      "suggestion_failures_total",
			Help:      "Suggestion failures reported in quiz feedback, by operation.",
		}, []string{"operation"}),
		PersistOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizmind",
			Name:      "result_persist_total",
			Help:      "Result persistence attempts, by outcome.",
		}, []string{"outcome"}),
		AIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quizmind",
			Name:      "ai_request_duration_seconds",
			Help:      "Latency of generative AI calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"operation", "status"}),
		QuestionPackSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizmind",
			Name:      "question_packs_total",
			Help:      "Question packs served, by source.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(
			r.SessionsStarted,
			r.SessionsCompleted,
			r.AnswersRecorded,
			r.SuggestionFailures,
			r.PersistOutcomes,
			r.AIRequestDuration,
			r.QuestionPackSource,
		)
	}
	return r
}

// Nop returns an unregistered recorder for tests and optional wiring.
func Nop() *Recorder {
	return New(nil)
}
