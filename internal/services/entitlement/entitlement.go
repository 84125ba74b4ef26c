// Package entitlement answers the single question the surrounding routing
// layer asks: may this authenticated user access gated content right now.
// The check is one ledger read plus a clock comparison; it never writes,
// never calls the payment provider and resolves every uncertainty to
// not-entitled.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lucasmartins-br/fitgate/internal/metrics"
	"github.com/lucasmartins-br/fitgate/internal/models"
	"github.com/lucasmartins-br/fitgate/internal/storage/repository"
)

// Ledger is the read-only view of the subscription store the gate needs.
type Ledger interface {
	GetSubscription(ctx context.Context, userUID string) (*models.SubscriptionRecord, error)
}

// Service is the entitlement gate.
type Service struct {
	repo Ledger
	log  *slog.Logger
	now  func() time.Time
}

// New creates the gate service.
func New(repo Ledger, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// IsEntitled returns true iff the user's record is active and unexpired at
// call time. A missing record is a valid never-subscribed state, not an
// error. An active record whose expiry has passed counts as not entitled
// but is not rewritten here (lazy expiry, the sweep owns that write).
func (s *Service) IsEntitled(ctx context.Context, userUID string) (bool, error) {
	const op = "entitlement.IsEntitled"

	rec, err := s.repo.GetSubscription(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			metrics.EntitlementChecksTotal.WithLabelValues("false").Inc()
			return false, nil
		}
		metrics.EntitlementChecksTotal.WithLabelValues("false").Inc()
		return false, fmt.Errorf("%s: %w", op, err)
	}

	entitled := rec.IsActiveAt(s.now())
	metrics.EntitlementChecksTotal.WithLabelValues(strconv.FormatBool(entitled)).Inc()
	return entitled, nil
}
