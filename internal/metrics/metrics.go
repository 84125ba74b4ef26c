// Package metrics registers the Prometheus instruments of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhooksTotal counts inbound payment webhooks by outcome
	// (accepted, rejected, ignored, policy_violation, conflict, error).
	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitgate_payment_webhooks_total",
		Help: "Inbound payment provider webhooks by outcome.",
	}, []string{"outcome"})

	// TransitionsTotal counts committed subscription transitions by target status.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitgate_subscription_transitions_total",
		Help: "Committed subscription state transitions by target status.",
	}, []string{"to"})

	// VersionConflictsTotal counts optimistic write conflicts that forced a retry.
	VersionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fitgate_ledger_version_conflicts_total",
		Help: "Optimistic concurrency conflicts on ledger writes.",
	})

	// EntitlementChecksTotal counts entitlement decisions by result.
	EntitlementChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitgate_entitlement_checks_total",
		Help: "Entitlement gate decisions by result.",
	}, []string{"entitled"})
)
