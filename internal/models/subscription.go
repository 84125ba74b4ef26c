// Package models contains the domain structures of the entitlement engine:
// the per-user subscription record, payment confirmations produced by the
// ingestor and the exercise catalog reference data.
package models

import "time"

// Subscription lifecycle statuses. A record is never deleted, it only
// moves between these states.
const (
	StatusNone     = "none"
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusExpired  = "expired"
	StatusCanceled = "canceled"
)

// SubscriptionRecord is the durable subscription state for one user.
// There is at most one record per user; Version is a monotonic counter
// used for optimistic concurrency control on every write.
type SubscriptionRecord struct {
	UserUID        string     // Identity supplied by the external auth provider
	Status         string     // One of the Status* constants
	ActivatedAt    *time.Time // Set on the pending -> active transition
	ExpiresAt      *time.Time // Set on activation, activation time + term
	CanceledAt     *time.Time // Set on an explicit cancel
	PendingAt      *time.Time // Set when a payment attempt opens a pending window
	LastPaymentRef *string    // Provider transaction id of the open or applied attempt
	Version        int64      // Bumped by the ledger on every successful write
}

// IsActiveAt reports whether the record grants entitlement at the given
// instant. An active record whose expiry has passed does not; the stored
// status is left untouched, the sweep rewrites it later.
func (r *SubscriptionRecord) IsActiveAt(now time.Time) bool {
	return r.Status == StatusActive && r.ExpiresAt != nil && r.ExpiresAt.After(now)
}
