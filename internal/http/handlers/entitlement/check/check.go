// Package check implements the HTTP handler answering whether the current
// user may access gated content. The answer is computed from the ledger
// at call time; the handler never redirects, the UI layer does that.
package check

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/lucasmartins-br/fitgate/internal/http/middlewarectx"
	"github.com/lucasmartins-br/fitgate/internal/http/response"
	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
)

// Service is the entitlement gate the handler asks.
type Service interface {
	IsEntitled(ctx context.Context, userUID string) (bool, error)
}

// Handler serves the entitlement check endpoint.
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
// @Summary Check entitlement
// @Description Reports whether the authenticated user may access the workout catalog right now.
// @Tags Entitlement
// @Produce json
// @Success 200 {object} map[string]any "Entitlement decision"
// @Failure 401 {object} response.ErrorResponse "User is not authenticated"
// @Failure 500 {object} response.ErrorResponse "Ledger read failed"
// @Security BearerAuth
// @Router /entitlement [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.check"
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

	entitled, err := h.service.IsEntitled(r.Context(), userUID)
	if err != nil {
		log.Error("entitlement check failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not check entitlement"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"entitled": entitled,
	}))
}
