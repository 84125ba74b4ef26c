// Package cancel implements the HTTP handler for an explicit subscription
// cancel request.
package cancel

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

// Service cancels subscriptions.
type Service interface {
	Cancel(ctx context.Context, userUID string) error
}

// Handler serves the cancel endpoint.
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
// @Summary Cancel subscription
// @Description Moves the user's active subscription to canceled. Access ends immediately.
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} response.Response "Subscription canceled"
// @Failure 401 {object} response.ErrorResponse "User is not authenticated"
// @Failure 409 {object} response.ErrorResponse "Subscription is not active"
// @Failure 500 {object} response.ErrorResponse "Cancel failed"
// @Security BearerAuth
// @Router /subscriptions/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
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

	if err := h.service.Cancel(r.Context(), userUID); err != nil {
		if errors.Is(err, reconciler.ErrNotActive) {
			log.Info("cancel rejected, subscription not active", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("subscription is not active"))
			return
		}
		log.Error("failed to cancel subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel subscription"))
		return
	}

	log.Info("subscription canceled", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"canceled": true,
	}))
}
