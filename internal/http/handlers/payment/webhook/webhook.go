// Package webhook implements the inbound payment provider endpoint. The
// raw event is normalized by the ingestor and applied by the reconciler;
// the provider may redeliver the same event any number of times, the
// idempotency key downstream makes the second application a no-op.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
	"github.com/lucasmartins-br/fitgate/internal/metrics"
	"github.com/lucasmartins-br/fitgate/internal/models"
	"github.com/lucasmartins-br/fitgate/internal/services/ingest"
	"github.com/lucasmartins-br/fitgate/internal/services/reconciler"
)

// SignatureHeader carries the provider's HMAC signature over the raw body.
const SignatureHeader = "X-Pix-Signature"

// Ingestor normalizes raw provider events.
type Ingestor interface {
	Ingest(body []byte, signature string) (*models.PaymentConfirmation, error)
}

// Reconciler applies confirmations to the ledger.
type Reconciler interface {
	ApplyConfirmation(ctx context.Context, conf *models.PaymentConfirmation) error
}

// Handler serves the provider webhook endpoint.
type Handler struct {
	log        *slog.Logger
	ingestor   Ingestor
	reconciler Reconciler
}

// New creates the handler.
func New(log *slog.Logger, ingestor Ingestor, rec Reconciler) *Handler {
	return &Handler{
		log:        log,
		ingestor:   ingestor,
		reconciler: rec,
	}
}

// ServeHTTP godoc
// @Summary Payment provider webhook
// @Description Receives signed instant payment events from the provider. Redeliveries are applied at most once.
// @Tags Payments
// @Accept json
// @Success 200 "Event applied or discarded as duplicate"
// @Failure 400 "Malformed event"
// @Failure 401 "Missing or invalid signature"
// @Failure 422 "Payment fails plan policy"
// @Failure 503 "Transient conflict, provider should redeliver"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	conf, err := h.ingestor.Ingest(body, r.Header.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidSignature):
			log.Error("invalid or missing webhook signature")
			metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
			w.WriteHeader(http.StatusUnauthorized)
		case errors.Is(err, ingest.ErrIgnoredEvent):
			log.Info("ignored webhook event", sl.Err(err))
			metrics.WebhooksTotal.WithLabelValues("ignored").Inc()
			w.WriteHeader(http.StatusOK)
		default:
			log.Error("malformed webhook event", sl.Err(err))
			metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
			w.WriteHeader(http.StatusBadRequest)
		}
		return
	}

	if err := h.reconciler.ApplyConfirmation(r.Context(), conf); err != nil {
		switch {
		case errors.Is(err, reconciler.ErrPolicyViolation):
			log.Error("payment fails policy check", sl.Err(err))
			metrics.WebhooksTotal.WithLabelValues("policy_violation").Inc()
			w.WriteHeader(http.StatusUnprocessableEntity)
		case errors.Is(err, reconciler.ErrTransientConflict):
			// Tell the provider to redeliver; the idempotency key keeps
			// the retry safe.
			log.Error("transient conflict applying confirmation", sl.Err(err))
			metrics.WebhooksTotal.WithLabelValues("conflict").Inc()
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			log.Error("failed to apply payment confirmation", sl.Err(err))
			metrics.WebhooksTotal.WithLabelValues("error").Inc()
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	log.Info("webhook processed",
		slog.String("payment_ref", conf.PaymentRef),
		slog.String("idempotency_key", conf.IdempotencyKey))
	metrics.WebhooksTotal.WithLabelValues("accepted").Inc()
	w.WriteHeader(http.StatusOK)
}
