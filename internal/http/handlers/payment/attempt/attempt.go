// Package attempt implements the HTTP handler that opens a payment
// attempt for the current user. The returned payment reference is what
// the client renders as the Pix charge for the provider to confirm
// asynchronously.
package attempt

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/lucasmartins-br/fitgate/internal/http/middlewarectx"
	"github.com/lucasmartins-br/fitgate/internal/http/response"
	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
	"github.com/lucasmartins-br/fitgate/internal/services/reconciler"
)

// Service opens payment attempts.
type Service interface {
	StartPaymentAttempt(ctx context.Context, userUID string) (string, error)
}

// Handler serves the payment attempt endpoint.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New creates the handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Start a payment attempt
// @Description Opens a pending payment attempt and returns the reference the client presents to the payment provider.
// @Tags Payments
// @Produce json
// @Success 200 {object} map[string]any "Open payment reference"
// @Failure 401 {object} response.ErrorResponse "User is not authenticated"
// @Failure 409 {object} response.ErrorResponse "Subscription already active"
// @Failure 500 {object} response.ErrorResponse "Attempt could not be opened"
// @Security BearerAuth
// @Router /payments/attempt [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.attempt"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	ref, err := h.service.StartPaymentAttempt(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, reconciler.ErrAlreadyActive) {
			log.Info("attempt rejected, subscription active", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("subscription already active"))
			return
		}
		log.Error("failed to open payment attempt", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not open payment attempt"))
		return
	}

	log.Info("payment attempt opened", slog.String("payment_ref", ref))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"payment_ref": ref,
	}))
}
