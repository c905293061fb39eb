package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentSessionsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idea_payment_sessions_initiated_total",
			Help: "Payment sessions requested from the provider, by result",
		},
		[]string{"result"},
	)

	PaymentSessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idea_payment_sessions_finished_total",
			Help: "Payment sessions that reached a terminal status, by status and source",
		},
		[]string{"status", "source"},
	)

	PaymentPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idea_payment_polls_total",
			Help: "Payment status queries issued by pollers, by poller and outcome",
		},
		[]string{"poller", "outcome"},
	)

	PaymentPollsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idea_payment_polls_active",
			Help: "Running payment poll loops per poller",
		},
		[]string{"poller"},
	)

	IdeaSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idea_submissions_total",
			Help: "Post-payment idea submissions, by result",
		},
		[]string{"result"},
	)

	IdeaSubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "idea_submission_duration_seconds",
			Help: "Duration of post-payment idea submission in seconds",
		},
	)
)
