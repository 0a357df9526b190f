package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// authEvents counts authentication outcomes by event name
	// (signup, login, login_failed, refresh, refresh_rejected, logout).
	authEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication events by type.",
		},
		[]string{"event"},
	)

	// toyQuestions counts answered toy questions; replays are excluded.
	toyQuestions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "toy_questions_total",
			Help: "Questions answered for toys.",
		},
	)
)

func init() {
	prometheus.MustRegister(authEvents, toyQuestions)
}
