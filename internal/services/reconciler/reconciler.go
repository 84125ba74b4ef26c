// Package reconciler implements the subscription state machine. Every
// transition is computed from the current record plus one event and
// committed through the ledger's optimistic-version contract, so the
// whole decision is safe to recompute after a write conflict. At most
// one transition is applied per real payment event: the confirmation's
// idempotency key is committed in the same transaction as the record.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
	"github.com/lucasmartins-br/fitgate/internal/metrics"
	"github.com/lucasmartins-br/fitgate/internal/models"
	"github.com/lucasmartins-br/fitgate/internal/rabbitmq"
	"github.com/lucasmartins-br/fitgate/internal/storage/repository"
)

var (
	// ErrPolicyViolation means the confirmed amount or currency does not
	// match the configured plan. No transition is applied; the payment
	// needs manual reconciliation.
	ErrPolicyViolation = errors.New("payment fails plan policy check")
	// ErrTransientConflict means the write retry budget was exhausted.
	ErrTransientConflict = errors.New("transient conflict, retries exhausted")
	// ErrAlreadyActive means a payment attempt was requested for a user
	// whose subscription is currently active.
	ErrAlreadyActive = errors.New("subscription already active")
	// ErrNotActive means a cancel was requested for a non-active subscription.
	ErrNotActive = errors.New("subscription is not active")
)

// Ledger is the versioned subscription store the reconciler writes through.
type Ledger interface {
	GetSubscription(ctx context.Context, userUID string) (*models.SubscriptionRecord, error)
	CreateSubscription(ctx context.Context, rec *models.SubscriptionRecord) error
	PutSubscription(ctx context.Context, expectedVersion int64, rec *models.SubscriptionRecord) error
	ApplyPaymentTransition(ctx context.Context, expectedVersion int64, rec *models.SubscriptionRecord, conf *models.PaymentConfirmation) error
	HasPaymentEvent(ctx context.Context, idempotencyKey string) (bool, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.SubscriptionRecord, error)
	ListActiveExpiredBefore(ctx context.Context, now time.Time) ([]*models.SubscriptionRecord, error)
}

// Publisher emits lifecycle events to the message bus.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Poller is the optional outbound check against the payment provider,
// consulted before a pending attempt is timed out.
type Poller interface {
	GetCharge(ctx context.Context, txid string) (*models.PaymentConfirmation, bool, error)
}

// Policy holds the subscription policy parameters, injected from config.
type Policy struct {
	Term             time.Duration // Entitlement granted per confirmed payment
	PendingTimeout   time.Duration // How long an unconfirmed attempt stays open
	PlanPriceCents   int64
	Currency         string
	MaxWriteAttempts int // Retry cap for optimistic write conflicts
}

// Service applies subscription transitions.
type Service struct {
	repo   Ledger
	pub    Publisher
	poller Poller // may be nil, polling is optional
	policy Policy
	log    *slog.Logger
	now    func() time.Time
}

// New creates a reconciler service. pub and poller may be nil.
func New(repo Ledger, pub Publisher, poller Poller, policy Policy, log *slog.Logger) *Service {
	if policy.MaxWriteAttempts <= 0 {
		policy.MaxWriteAttempts = 4
	}
	return &Service{
		repo:   repo,
		pub:    pub,
		poller: poller,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

// StartPaymentAttempt opens a pending window for the user and returns the
// payment reference the client presents to the provider. From none,
// expired, canceled or no record at all this is a fresh attempt; an
// attempt on an already pending record returns the open reference so the
// client can re-display it.
func (s *Service) StartPaymentAttempt(ctx context.Context, userUID string) (string, error) {
	const op = "reconciler.StartPaymentAttempt"

	for range s.policy.MaxWriteAttempts {
		rec, err := s.repo.GetSubscription(ctx, userUID)
		if err != nil {
			if errors.Is(err, repository.ErrSubscriptionNotFound) {
				ref := uuid.New().String()
				now := s.now().UTC()
				fresh := &models.SubscriptionRecord{
					UserUID:        userUID,
					Status:         models.StatusPending,
					PendingAt:      &now,
					LastPaymentRef: &ref,
				}
				if err := s.repo.CreateSubscription(ctx, fresh); err != nil {
					if errors.Is(err, repository.ErrVersionConflict) {
						metrics.VersionConflictsTotal.Inc()
						continue
					}
					return "", fmt.Errorf("%s: %w", op, err)
				}
				metrics.TransitionsTotal.WithLabelValues(models.StatusPending).Inc()
				s.log.Info("opened first payment attempt",
					slog.String("user_uid", userUID), slog.String("payment_ref", ref))
				return ref, nil
			}
			return "", fmt.Errorf("%s: %w", op, err)
		}

		switch rec.Status {
		case models.StatusPending:
			if rec.LastPaymentRef != nil {
				return *rec.LastPaymentRef, nil
			}
		case models.StatusActive:
			if rec.IsActiveAt(s.now()) {
				return "", fmt.Errorf("%s: %w", op, ErrAlreadyActive)
			}
			// Expiry passed but the sweep has not rewritten the record
			// yet; a new attempt is legitimate.
		case models.StatusNone, models.StatusExpired, models.StatusCanceled:
		default:
			return "", fmt.Errorf("%s: unknown status %q", op, rec.Status)
		}

		ref := uuid.New().String()
		now := s.now().UTC()
		next := *rec
		next.Status = models.StatusPending
		next.PendingAt = &now
		next.LastPaymentRef = &ref

		if err := s.repo.PutSubscription(ctx, rec.Version, &next); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				metrics.VersionConflictsTotal.Inc()
				continue
			}
			return "", fmt.Errorf("%s: %w", op, err)
		}
		metrics.TransitionsTotal.WithLabelValues(models.StatusPending).Inc()
		s.log.Info("opened payment attempt",
			slog.String("user_uid", userUID), slog.String("payment_ref", ref))
		return ref, nil
	}

	return "", fmt.Errorf("%s: %w", op, ErrTransientConflict)
}

// ApplyConfirmation applies one confirmed payment to the user's record.
// Duplicates (same idempotency key) and stale confirmations (no pending
// attempt, or a superseded payment reference) are discarded without a
// transition. A matching confirmation moves pending to active.
func (s *Service) ApplyConfirmation(ctx context.Context, conf *models.PaymentConfirmation) error {
	const op = "reconciler.ApplyConfirmation"

	if conf.AmountCents != s.policy.PlanPriceCents || conf.Currency != s.policy.Currency {
		s.log.Warn("payment fails policy check",
			slog.String("user_uid", conf.UserUID),
			slog.Int64("amount_cents", conf.AmountCents),
			slog.String("currency", conf.Currency))
		return fmt.Errorf("%s: %w", op, ErrPolicyViolation)
	}

	for range s.policy.MaxWriteAttempts {
		seen, err := s.repo.HasPaymentEvent(ctx, conf.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if seen {
			s.log.Info("duplicate payment event discarded",
				slog.String("idempotency_key", conf.IdempotencyKey))
			return nil
		}

		rec, err := s.repo.GetSubscription(ctx, conf.UserUID)
		if err != nil {
			if errors.Is(err, repository.ErrSubscriptionNotFound) {
				s.log.Warn("confirmation for user without payment attempt discarded",
					slog.String("user_uid", conf.UserUID))
				return nil
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		if rec.Status != models.StatusPending ||
			rec.LastPaymentRef == nil || *rec.LastPaymentRef != conf.PaymentRef {
			s.log.Warn("stale payment confirmation discarded",
				slog.String("user_uid", conf.UserUID),
				slog.String("status", rec.Status),
				slog.String("payment_ref", conf.PaymentRef))
			return nil
		}

		now := s.now().UTC()
		expires := now.Add(s.policy.Term)
		next := *rec
		next.Status = models.StatusActive
		next.ActivatedAt = &now
		next.ExpiresAt = &expires
		next.PendingAt = nil

		err = s.repo.ApplyPaymentTransition(ctx, rec.Version, &next, conf)
		switch {
		case err == nil:
			metrics.TransitionsTotal.WithLabelValues(models.StatusActive).Inc()
			s.log.Info("subscription activated",
				slog.String("user_uid", conf.UserUID),
				slog.String("payment_ref", conf.PaymentRef),
				slog.Time("expires_at", expires))
			s.publish(rabbitmq.KeyActivated, models.LifecycleEvent{
				UserUID:    conf.UserUID,
				Status:     models.StatusActive,
				PaymentRef: conf.PaymentRef,
				ExpiresAt:  expires,
				Email:      conf.PayerEmail,
				OccurredAt: now,
			})
			return nil
		case errors.Is(err, repository.ErrDuplicateEvent):
			s.log.Info("duplicate payment event discarded",
				slog.String("idempotency_key", conf.IdempotencyKey))
			return nil
		case errors.Is(err, repository.ErrVersionConflict):
			metrics.VersionConflictsTotal.Inc()
			continue
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return fmt.Errorf("%s: %w", op, ErrTransientConflict)
}

// Cancel moves an active subscription to canceled.
func (s *Service) Cancel(ctx context.Context, userUID string) error {
	const op = "reconciler.Cancel"

	for range s.policy.MaxWriteAttempts {
		rec, err := s.repo.GetSubscription(ctx, userUID)
		if err != nil {
			if errors.Is(err, repository.ErrSubscriptionNotFound) {
				return fmt.Errorf("%s: %w", op, ErrNotActive)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		if rec.Status != models.StatusActive {
			return fmt.Errorf("%s: %w", op, ErrNotActive)
		}

		now := s.now().UTC()
		next := *rec
		next.Status = models.StatusCanceled
		next.CanceledAt = &now

		if err := s.repo.PutSubscription(ctx, rec.Version, &next); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				metrics.VersionConflictsTotal.Inc()
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		metrics.TransitionsTotal.WithLabelValues(models.StatusCanceled).Inc()
		s.log.Info("subscription canceled", slog.String("user_uid", userUID))
		s.publish(rabbitmq.KeyCanceled, models.LifecycleEvent{
			UserUID:    userUID,
			Status:     models.StatusCanceled,
			OccurredAt: now,
		})
		return nil
	}

	return fmt.Errorf("%s: %w", op, ErrTransientConflict)
}

// publish emits a lifecycle event, best effort. A bus failure never fails
// the committed transition.
func (s *Service) publish(routingKey string, event models.LifecycleEvent) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(routingKey, event); err != nil {
		s.log.Error("failed to publish lifecycle event",
			slog.String("routing_key", routingKey), sl.Err(err))
	}
}
