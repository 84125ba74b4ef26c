package models

import "time"

// PaymentConfirmation is the canonical form of a confirmed instant payment,
// produced by the ingestor from a raw provider event and consumed exactly
// once by the reconciler. IdempotencyKey is the provider end-to-end id,
// globally unique per real-world payment; redeliveries carry the same key.
type PaymentConfirmation struct {
	IdempotencyKey string    `json:"idempotency_key"`
	PaymentRef     string    `json:"payment_ref"` // Provider txid, matched against LastPaymentRef
	UserUID        string    `json:"user_uid"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
	PayerEmail     string    `json:"payer_email,omitempty"` // Optional, taken from provider payer info
}

// LifecycleEvent is the message published to RabbitMQ when the reconciler
// commits a subscription transition.
type LifecycleEvent struct {
	UserUID    string    `json:"user_uid"`
	Status     string    `json:"status"`
	PaymentRef string    `json:"payment_ref,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
