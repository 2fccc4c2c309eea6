package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|invalid_credentials|deactivated|error).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vexpense_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// SessionRefreshes counts refresh-token rotations by result (success|rejected|error).
	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vexpense_session_refreshes_total",
			Help: "Total number of refresh token rotations",
		},
		[]string{"result"},
	)

	// PolicyChecks counts access policy decisions (allow|deny).
	PolicyChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vexpense_policy_checks_total",
			Help: "Total number of access policy decisions",
		},
		[]string{"check", "result"},
	)

	// ActiveSessions tracks sessions opened minus sessions revoked or expired and cleaned up by this process.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vexpense_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// CurrencyRefreshes counts exchange rate refreshes by result.
	CurrencyRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vexpense_currency_refreshes_total",
			Help: "Total number of exchange rate refreshes",
		},
		[]string{"result"},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vexpense_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vexpense_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
