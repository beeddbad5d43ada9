// Package metrics defines and registers all custom Prometheus metrics for the
// identity service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry at package init
// through promauto, so importing the package is enough.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Account metrics ───────────────────────────────────────────────────────────

// SignupsTotal counts signup and admin-creation attempts.
// Labels:
//   - role: the role the account was created with ("CLIENT", "ADMIN")
//   - result: error code on failure (e.g. "EMAIL_EXISTS"), "ok" on success
var SignupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of account creation attempts, by role and result.",
	},
	[]string{"role", "result"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "ok" or the error code returned to the caller
//
// Unknown account and wrong password share the INVALID_CREDENTIALS label.
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── Authorization metrics ─────────────────────────────────────────────────────

// AuthorizationDecisionsTotal counts Authorizer outcomes.
// Labels:
//   - outcome: "admitted", "MISSING_TOKEN", "INVALID_TOKEN", "INSUFFICIENT_ROLE"
//   - reason: verifier diagnostic for INVALID_TOKEN ("malformed", "bad_signature", "expired"), empty otherwise
var AuthorizationDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_decisions_total",
		Help:      "Total number of authorization decisions, by outcome.",
	},
	[]string{"outcome", "reason"},
)

// TokensIssuedTotal counts access tokens minted, by role.
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of access tokens issued, by role.",
	},
	[]string{"role"},
)

// ── Password hashing metrics ──────────────────────────────────────────────────

// PasswordHashDuration measures bcrypt work.
// Label:
//   - op: "hash" or "verify"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of bcrypt hash and verify operations.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"op"},
)

// HashQueueDepth tracks jobs waiting for a hashing worker.
var HashQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hash_queue_depth",
		Help:      "Current number of password hashing jobs waiting for a worker.",
	},
)

// ── Throttle metrics ──────────────────────────────────────────────────────────

// LoginThrottleErrorsTotal counts throttle backend failures that were ignored.
var LoginThrottleErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_throttle_errors_total",
		Help:      "Total number of login throttle backend errors (requests proceed unthrottled).",
	},
)
