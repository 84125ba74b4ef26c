package fitgate

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	cataloglist "github.com/lucasmartins-br/fitgate/internal/http/handlers/catalog/list"
	"github.com/lucasmartins-br/fitgate/internal/http/handlers/entitlement/check"
	"github.com/lucasmartins-br/fitgate/internal/http/handlers/health"
	"github.com/lucasmartins-br/fitgate/internal/http/handlers/payment/attempt"
	"github.com/lucasmartins-br/fitgate/internal/http/handlers/payment/webhook"
	"github.com/lucasmartins-br/fitgate/internal/http/handlers/subscription/cancel"
	"github.com/lucasmartins-br/fitgate/internal/http/middlewarectx"
	libjwt "github.com/lucasmartins-br/fitgate/internal/lib/jwt"
	catalogservice "github.com/lucasmartins-br/fitgate/internal/services/catalog"
	entitlementservice "github.com/lucasmartins-br/fitgate/internal/services/entitlement"
	ingestservice "github.com/lucasmartins-br/fitgate/internal/services/ingest"
	reconcilerservice "github.com/lucasmartins-br/fitgate/internal/services/reconciler"
	"github.com/lucasmartins-br/fitgate/internal/storage/repository"
)

// RegisterRoutes registers all routes of the API service.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *repository.Storage,
	jwtMaker libjwt.Maker,
	entitlementSvc *entitlementservice.Service,
	reconcilerSvc *reconcilerservice.Service,
	ingestor *ingestservice.Ingestor,
	catalogSvc *catalogservice.Service) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Provider webhook, authenticated by signature instead of JWT.
		r.Post("/payments/webhook", webhook.New(logger, ingestor, reconcilerSvc).ServeHTTP)

		// Authenticated endpoints.
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.IdentityMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/entitlement", check.New(logger, entitlementSvc).ServeHTTP)
			r.Post("/payments/attempt", attempt.New(logger, reconcilerSvc).ServeHTTP)
			r.Post("/subscriptions/cancel", cancel.New(logger, reconcilerSvc).ServeHTTP)

			// Gated content sits behind the entitlement middleware.
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.EntitlementMiddleware(entitlementSvc, logger))
				r.Get("/catalog", cataloglist.New(logger, catalogSvc).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
