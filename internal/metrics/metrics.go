// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoplay_http_requests_total",
		Help: "HTTP requests handled, by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecoplay_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoplay_registrations_total",
		Help: "Accounts created.",
	})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoplay_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	ScenariosStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoplay_scenarios_started_total",
		Help: "Play sessions started or restarted.",
	})

	ScenariosCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoplay_scenarios_completed_total",
		Help: "Play sessions that reached the last step.",
	})

	ProgressPersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoplay_progress_persist_failures_total",
		Help: "Completion records that could not be written.",
	})

	ActivePlaySessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ecoplay_active_play_sessions",
		Help: "Play sessions currently held in memory.",
	})
)
