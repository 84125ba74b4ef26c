package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lucasmartins-br/fitgate/internal/models"
)

const uniqueViolation = "23505"

// GetSubscription returns the subscription record of the user or
// ErrSubscriptionNotFound when the user never subscribed.
func (s *Storage) GetSubscription(ctx context.Context, userUID string) (*models.SubscriptionRecord, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, status, activated_at, expires_at, canceled_at, pending_at,
			      last_payment_ref, version
			  FROM subscriptions WHERE user_uid = $1`
	row := s.DB.QueryRowContext(ctx, query, userUID)

	var rec models.SubscriptionRecord
	if err := row.Scan(&rec.UserUID, &rec.Status, &rec.ActivatedAt, &rec.ExpiresAt,
		&rec.CanceledAt, &rec.PendingAt, &rec.LastPaymentRef, &rec.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rec, nil
}

// CreateSubscription inserts the first record for a user with version 1.
// A concurrent first insert for the same user surfaces as
// ErrVersionConflict so the caller re-reads and retries its decision.
func (s *Storage) CreateSubscription(ctx context.Context, rec *models.SubscriptionRecord) error {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, status, activated_at, expires_at, canceled_at,
			      pending_at, last_payment_ref, version)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`
	_, err := s.DB.ExecContext(ctx, query,
		rec.UserUID, rec.Status, rec.ActivatedAt, rec.ExpiresAt, rec.CanceledAt,
		rec.PendingAt, rec.LastPaymentRef)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, ErrVersionConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PutSubscription writes the record if its stored version still equals
// expectedVersion, bumping the version by one. Zero matched rows means a
// concurrent transition raced and is reported as ErrVersionConflict.
func (s *Storage) PutSubscription(ctx context.Context, expectedVersion int64, rec *models.SubscriptionRecord) error {
	const op = "storage.PutSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1, activated_at = $2, expires_at = $3, canceled_at = $4,
			      pending_at = $5, last_payment_ref = $6, version = version + 1,
			      updated_at = now()
			  WHERE user_uid = $7 AND version = $8`
	result, err := s.DB.ExecContext(ctx, query,
		rec.Status, rec.ActivatedAt, rec.ExpiresAt, rec.CanceledAt,
		rec.PendingAt, rec.LastPaymentRef, rec.UserUID, expectedVersion)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrVersionConflict)
	}
	return nil
}

// ApplyPaymentTransition commits the record write and the idempotency key
// of the confirmation in one transaction. A seen key aborts with
// ErrDuplicateEvent before the record is touched, a version mismatch
// aborts with ErrVersionConflict; either way nothing is half-applied.
func (s *Storage) ApplyPaymentTransition(ctx context.Context, expectedVersion int64,
	rec *models.SubscriptionRecord, conf *models.PaymentConfirmation) error {
	const op = "storage.ApplyPaymentTransition"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	eventQuery := `INSERT INTO payment_events (idempotency_key, payment_ref, user_uid,
			      amount_cents, currency, confirmed_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (idempotency_key) DO NOTHING`
	result, err := tx.ExecContext(ctx, eventQuery,
		conf.IdempotencyKey, conf.PaymentRef, conf.UserUID,
		conf.AmountCents, conf.Currency, conf.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if inserted == 0 {
		return fmt.Errorf("%s: %w", op, ErrDuplicateEvent)
	}

	recQuery := `UPDATE subscriptions
			  SET status = $1, activated_at = $2, expires_at = $3, canceled_at = $4,
			      pending_at = $5, last_payment_ref = $6, version = version + 1,
			      updated_at = now()
			  WHERE user_uid = $7 AND version = $8`
	result, err = tx.ExecContext(ctx, recQuery,
		rec.Status, rec.ActivatedAt, rec.ExpiresAt, rec.CanceledAt,
		rec.PendingAt, rec.LastPaymentRef, rec.UserUID, expectedVersion)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if updated == 0 {
		return fmt.Errorf("%s: %w", op, ErrVersionConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HasPaymentEvent reports whether the idempotency key was applied before.
// Used as a cheap fast path; the transactional insert above is the
// authoritative check.
func (s *Storage) HasPaymentEvent(ctx context.Context, idempotencyKey string) (bool, error) {
	const op = "storage.HasPaymentEvent"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (SELECT 1 FROM payment_events WHERE idempotency_key = $1)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, idempotencyKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ListPendingOlderThan returns pending records whose attempt window opened
// before the cutoff. Feed for the pending-timeout sweep.
func (s *Storage) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.SubscriptionRecord, error) {
	const op = "storage.ListPendingOlderThan"
	return s.listByStatus(ctx, op,
		`SELECT user_uid, status, activated_at, expires_at, canceled_at, pending_at,
			      last_payment_ref, version
		  FROM subscriptions
		  WHERE status = $1 AND pending_at < $2
		  ORDER BY pending_at`, models.StatusPending, cutoff)
}

// ListActiveExpiredBefore returns active records whose expiry has passed.
// Feed for the expiry sweep.
func (s *Storage) ListActiveExpiredBefore(ctx context.Context, now time.Time) ([]*models.SubscriptionRecord, error) {
	const op = "storage.ListActiveExpiredBefore"
	return s.listByStatus(ctx, op,
		`SELECT user_uid, status, activated_at, expires_at, canceled_at, pending_at,
			      last_payment_ref, version
		  FROM subscriptions
		  WHERE status = $1 AND expires_at <= $2
		  ORDER BY expires_at`, models.StatusActive, now)
}

func (s *Storage) listByStatus(ctx context.Context, op, query, status string, moment time.Time) ([]*models.SubscriptionRecord, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, query, status, moment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.SubscriptionRecord
	for rows.Next() {
		var rec models.SubscriptionRecord
		if err := rows.Scan(&rec.UserUID, &rec.Status, &rec.ActivatedAt, &rec.ExpiresAt,
			&rec.CanceledAt, &rec.PendingAt, &rec.LastPaymentRef, &rec.Version); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
