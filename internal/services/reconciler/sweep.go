package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
	"github.com/lucasmartins-br/fitgate/internal/metrics"
	"github.com/lucasmartins-br/fitgate/internal/models"
	"github.com/lucasmartins-br/fitgate/internal/rabbitmq"
	"github.com/lucasmartins-br/fitgate/internal/storage/repository"
)

// RunSweeps executes both sweeps once at start and then on every tick
// until the context is canceled.
func (s *Service) RunSweeps(ctx context.Context, interval time.Duration) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	s.SweepPendingTimeouts(ctx)
	s.SweepExpired(ctx)
}

// SweepPendingTimeouts closes pending attempts whose confirmation never
// arrived within the timeout window. Before dropping an attempt the
// provider is polled once (when a poller is configured): a payment that
// settled but lost its webhook is applied instead of discarded. Each
// user is handled independently; a write conflict means someone else
// just transitioned that user and the record is left for the next sweep.
func (s *Service) SweepPendingTimeouts(ctx context.Context) {
	cutoff := s.now().Add(-s.policy.PendingTimeout)
	records, err := s.repo.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("failed to list timed out attempts", sl.Err(err))
		return
	}
	if len(records) == 0 {
		return
	}
	s.log.Info("sweeping timed out payment attempts", slog.Int("count", len(records)))

	for _, rec := range records {
		if s.tryPollBeforeTimeout(ctx, rec) {
			continue
		}

		next := *rec
		next.Status = models.StatusNone
		next.PendingAt = nil
		next.LastPaymentRef = nil

		if err := s.repo.PutSubscription(ctx, rec.Version, &next); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				metrics.VersionConflictsTotal.Inc()
				s.log.Debug("pending timeout skipped, concurrent transition",
					slog.String("user_uid", rec.UserUID))
				continue
			}
			s.log.Error("failed to time out payment attempt",
				slog.String("user_uid", rec.UserUID), sl.Err(err))
			continue
		}
		metrics.TransitionsTotal.WithLabelValues(models.StatusNone).Inc()
		s.log.Info("payment attempt timed out", slog.String("user_uid", rec.UserUID))
		s.publish(rabbitmq.KeyPendingTimeout, models.LifecycleEvent{
			UserUID:    rec.UserUID,
			Status:     models.StatusNone,
			OccurredAt: s.now().UTC(),
		})
	}
}

// tryPollBeforeTimeout asks the provider about the open attempt and
// applies the confirmation when the charge settled. Returns true when the
// record should not be timed out in this pass.
func (s *Service) tryPollBeforeTimeout(ctx context.Context, rec *models.SubscriptionRecord) bool {
	if s.poller == nil || rec.LastPaymentRef == nil {
		return false
	}

	conf, found, err := s.poller.GetCharge(ctx, *rec.LastPaymentRef)
	if err != nil {
		s.log.Warn("provider poll failed, deferring timeout",
			slog.String("user_uid", rec.UserUID), sl.Err(err))
		// Unknown provider state; do not drop the attempt on this pass.
		return true
	}
	if !found || conf == nil {
		return false
	}

	if err := s.ApplyConfirmation(ctx, conf); err != nil {
		s.log.Error("failed to apply polled confirmation",
			slog.String("user_uid", rec.UserUID), sl.Err(err))
	}
	return true
}

// SweepExpired rewrites active records whose expiry has passed. The gate
// already treats them as not entitled (lazy expiry); this keeps the
// stored status honest and emits the lifecycle event.
func (s *Service) SweepExpired(ctx context.Context) {
	records, err := s.repo.ListActiveExpiredBefore(ctx, s.now())
	if err != nil {
		s.log.Error("failed to list expired subscriptions", sl.Err(err))
		return
	}
	if len(records) == 0 {
		return
	}
	s.log.Info("sweeping expired subscriptions", slog.Int("count", len(records)))

	for _, rec := range records {
		next := *rec
		next.Status = models.StatusExpired

		if err := s.repo.PutSubscription(ctx, rec.Version, &next); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				metrics.VersionConflictsTotal.Inc()
				s.log.Debug("expiry skipped, concurrent transition",
					slog.String("user_uid", rec.UserUID))
				continue
			}
			s.log.Error("failed to expire subscription",
				slog.String("user_uid", rec.UserUID), sl.Err(err))
			continue
		}
		metrics.TransitionsTotal.WithLabelValues(models.StatusExpired).Inc()
		s.log.Info("subscription expired", slog.String("user_uid", rec.UserUID))
		s.publish(rabbitmq.KeyExpired, models.LifecycleEvent{
			UserUID:    rec.UserUID,
			Status:     models.StatusExpired,
			OccurredAt: s.now().UTC(),
		})
	}
}
