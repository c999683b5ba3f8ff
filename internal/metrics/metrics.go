// Package metrics holds the Prometheus instruments shared across the
// service. Everything is registered on the default registry and served
// by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Logins counts login attempts by outcome.
	// Outcomes: success, invalid_credentials, mfa_required, mfa_failed, error.
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantauth_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// TokenRotations counts refresh token rotations by outcome.
	// Outcomes: success, replayed, invalid.
	TokenRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantauth_token_rotations_total",
			Help: "Refresh token rotations by outcome",
		},
		[]string{"outcome"},
	)

	// RateLimitRejections counts requests rejected by the rate limiter.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantauth_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// CacheOperations counts tenant cache hits and misses.
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantauth_cache_operations_total",
			Help: "Tenant cache lookups by result",
		},
		[]string{"result"},
	)
)

// Login outcome label values.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeMfaRequired        = "mfa_required"
	OutcomeMfaFailed          = "mfa_failed"
	OutcomeError              = "error"
	OutcomeReplayed           = "replayed"
	OutcomeInvalid            = "invalid"
)
