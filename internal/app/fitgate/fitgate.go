// Package fitgate wires the HTTP API service: ledger storage, catalog
// cache, lifecycle event bus and the services behind the routes.
package fitgate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/lucasmartins-br/fitgate/internal/cache"
	"github.com/lucasmartins-br/fitgate/internal/config"
	libjwt "github.com/lucasmartins-br/fitgate/internal/lib/jwt"
	librabbitmq "github.com/lucasmartins-br/fitgate/internal/lib/rabbitmq"
	"github.com/lucasmartins-br/fitgate/internal/migrations"
	"github.com/lucasmartins-br/fitgate/internal/rabbitmq"
	catalogservice "github.com/lucasmartins-br/fitgate/internal/services/catalog"
	entitlementservice "github.com/lucasmartins-br/fitgate/internal/services/entitlement"
	ingestservice "github.com/lucasmartins-br/fitgate/internal/services/ingest"
	reconcilerservice "github.com/lucasmartins-br/fitgate/internal/services/reconciler"
	"github.com/lucasmartins-br/fitgate/internal/storage/repository"
)

// App is the HTTP API application.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New builds the application from config.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetLifecycleQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	publisher := librabbitmq.NewPublisher(ch, rabbitmq.Exchange)

	policy := reconcilerservice.Policy{
		Term:             cfg.SubscriptionTerm,
		PendingTimeout:   cfg.PendingTimeout,
		PlanPriceCents:   cfg.PlanPriceCents,
		Currency:         cfg.Currency,
		MaxWriteAttempts: cfg.MaxWriteAttempts,
	}

	entitlementSvc := entitlementservice.New(db, logger)
	reconcilerSvc := reconcilerservice.New(db, publisher, nil, policy, logger)
	ingestor := ingestservice.New(cfg.Pix.WebhookSecret, logger)
	catalogSvc := catalogservice.New(db, cacheRedis, logger)
	jwtMaker := libjwt.NewMaker(cfg.JWTSecretKey)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db, jwtMaker, entitlementSvc, reconcilerSvc, ingestor, catalogSvc)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run starts the server and blocks until the context is canceled or the
// server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.ch.Close(); closeErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", closeErr))
		}
		if closeErr := a.conn.Close(); closeErr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		_ = a.db.DB.Close()
		return err
	}
}
