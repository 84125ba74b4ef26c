// Package sweeper wires the off-request-path reconciliation worker: the
// periodic sweep over pending timeouts and expired subscriptions.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/lucasmartins-br/fitgate/internal/config"
	librabbitmq "github.com/lucasmartins-br/fitgate/internal/lib/rabbitmq"
	"github.com/lucasmartins-br/fitgate/internal/paymentprovider"
	"github.com/lucasmartins-br/fitgate/internal/rabbitmq"
	reconcilerservice "github.com/lucasmartins-br/fitgate/internal/services/reconciler"
	"github.com/lucasmartins-br/fitgate/internal/storage/repository"
)

// App is the sweep worker application.
type App struct {
	reconciler *reconcilerservice.Service
	interval   time.Duration
	conn       *amqp.Connection
	ch         *amqp.Channel
	db         *repository.Storage
	logger     *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New builds the sweep worker from config.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetLifecycleQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	var poller reconcilerservice.Poller
	if cfg.Pix.PollOnTimeout && cfg.Pix.ClientID != "" {
		client := paymentprovider.NewClient(cfg.Pix.ClientID, cfg.Pix.ClientSecret, cfg.Pix.APIURL)
		poller = paymentprovider.NewPollSource(client)
	}

	policy := reconcilerservice.Policy{
		Term:             cfg.SubscriptionTerm,
		PendingTimeout:   cfg.PendingTimeout,
		PlanPriceCents:   cfg.PlanPriceCents,
		Currency:         cfg.Currency,
		MaxWriteAttempts: cfg.MaxWriteAttempts,
	}
	publisher := librabbitmq.NewPublisher(ch, rabbitmq.Exchange)
	reconcilerSvc := reconcilerservice.New(db, publisher, poller, policy, logger)

	return &App{
		reconciler: reconcilerSvc,
		interval:   cfg.SweepInterval,
		conn:       conn,
		ch:         ch,
		db:         db,
		logger:     logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run starts the sweep loop and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	go a.reconciler.RunSweeps(ctx, a.interval)

	<-ctx.Done()

	a.logger.Info("shutting down sweeper")

	closeResources(a.ch, a.conn, a.logger)
	_ = a.db.DB.Close()

	return nil
}
