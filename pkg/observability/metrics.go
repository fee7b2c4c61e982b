package observability

import (
	"context"

	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the assistant collectors.
type Metrics struct {
	Turns        *prometheus.CounterVec
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	Discards     *prometheus.CounterVec
	Speech       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripvoice_turns_total",
				Help: "Conversation turns appended, by role",
			},
			[]string{"role"},
		),
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripvoice_backend_calls_total",
				Help: "Backend calls, by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripvoice_backend_call_duration_seconds",
				Help:    "Duration of backend calls",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
		Discards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripvoice_discards_total",
				Help: "Utterances or responses dropped before reaching the log",
			},
			[]string{"reason"},
		),
		Speech: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripvoice_speech_total",
				Help: "Spoken replies, by path",
			},
			[]string{"path"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Turns, m.Calls, m.CallDuration, m.Discards, m.Speech)
	}
	return m
}

// Hooks records every lifecycle event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurn: func(_ context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(string(e.Turn.Role)).Inc()
		},
		OnCallEnd: func(_ context.Context, e *domain.CallEvent) {
			outcome := "success"
			if e.Err != nil {
				outcome = "error"
			}
			m.Calls.WithLabelValues(e.Endpoint, outcome).Inc()
			m.CallDuration.WithLabelValues(e.Endpoint).Observe(e.Duration.Seconds())
		},
		OnDiscard: func(_ context.Context, e *domain.DiscardEvent) {
			m.Discards.WithLabelValues(string(e.Reason)).Inc()
		},
		OnSpeech: func(_ context.Context, e *domain.SpeechEvent) {
			m.Speech.WithLabelValues(string(e.Path)).Inc()
		},
	}
}
