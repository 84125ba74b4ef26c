// Package list implements the HTTP handler for the gated exercise
// catalog listing. Routing puts the entitlement middleware in front of
// it, so the handler itself only reads.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/lucasmartins-br/fitgate/internal/http/response"
	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
	"github.com/lucasmartins-br/fitgate/internal/models"
)

// Service lists the catalog.
type Service interface {
	List(ctx context.Context) ([]*models.ExerciseCatalogEntry, error)
}

// Handler serves the catalog listing endpoint.
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
// @Summary List the exercise catalog
// @Description Returns the workout exercise catalog. Requires an active subscription.
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Response "Catalog entries"
// @Failure 401 {object} response.ErrorResponse "User is not authenticated"
// @Failure 403 {object} response.ErrorResponse "Subscription required"
// @Failure 500 {object} response.ErrorResponse "Listing failed"
// @Security BearerAuth
// @Router /catalog [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	entries, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list catalog", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list catalog"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"exercises": entries,
		"count":     len(entries),
	}))
}
