// Package notifier wires the lifecycle mail worker: RabbitMQ consumers
// feeding the SMTP sender.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/lucasmartins-br/fitgate/internal/config"
	libsmtp "github.com/lucasmartins-br/fitgate/internal/lib/smtp"
	"github.com/lucasmartins-br/fitgate/internal/rabbitmq"
	notifierservice "github.com/lucasmartins-br/fitgate/internal/services/notifier"
)

// App is the notifier worker application.
type App struct {
	service *notifierservice.Service
	conn    *amqp.Connection
	ch      *amqp.Channel
	logger  *slog.Logger
}

// New builds the notifier worker from config.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetLifecycleQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := libsmtp.NewTransport(cfg, logger)
	service := notifierservice.New(transport, logger)

	return &App{
		service: service,
		conn:    conn,
		ch:      ch,
		logger:  logger,
	}, nil
}

// Run subscribes the consumers and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumeMessages(ctx, a.ch, "entitlements.activated", a.service.HandleActivated); err != nil {
		return fmt.Errorf("failed to consume activation events: %w", err)
	}
	if err := rabbitmq.ConsumeMessages(ctx, a.ch, "entitlements.expired", a.service.HandleExpired); err != nil {
		return fmt.Errorf("failed to consume expiry events: %w", err)
	}

	<-ctx.Done()

	a.logger.Info("shutting down notifier")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
