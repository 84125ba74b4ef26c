// Package health implements the readiness endpoint.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/lucasmartins-br/fitgate/internal/http/response"
	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
	"github.com/lucasmartins-br/fitgate/internal/storage/repository"
)

// Handler serves the health endpoint.
type Handler struct {
	log     *slog.Logger
	storage *repository.Storage
}

// New creates the handler.
func New(log *slog.Logger, storage *repository.Storage) *Handler {
	return &Handler{
		log:     log,
		storage: storage,
	}
}

// ServeHTTP reports readiness of the service and its database.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := repository.CheckDatabaseReady(h.storage); err != nil {
		h.log.Error("database not ready", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database not ready"))
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{"healthy": true}))
}
