// Package notifier consumes subscription lifecycle events from RabbitMQ
// and mails the user. Events without a payer email (expiry sweeps do not
// carry one) are acknowledged and logged only.
package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	libsmtp "github.com/lucasmartins-br/fitgate/internal/lib/smtp"
	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
	"github.com/lucasmartins-br/fitgate/internal/models"
)

// Transport opens mail sessions.
type Transport interface {
	Connect() (libsmtp.Client, error)
	GetSMTPUser() string
}

// Service sends lifecycle notification mails.
type Service struct {
	transport Transport
	log       *slog.Logger
}

// New creates a notifier service.
func New(transport Transport, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// HandleActivated processes a subscription.activated event body.
func (s *Service) HandleActivated(body []byte) error {
	var event models.LifecycleEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal lifecycle event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if event.Email == "" {
		s.log.Info("activation event without payer email, skipping mail",
			slog.String("user_uid", event.UserUID))
		return nil
	}

	subject := "Your subscription is active"
	bodyText := fmt.Sprintf(
		"Hi!\n\nYour payment was confirmed and your workout catalog access is active until %s.\n\nEnjoy your training!",
		event.ExpiresAt.Format("02 Jan 2006"))

	return s.sendEmail([]string{event.Email}, subject, bodyText)
}

// HandleExpired processes a subscription.expired event body.
func (s *Service) HandleExpired(body []byte) error {
	var event models.LifecycleEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal lifecycle event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if event.Email == "" {
		s.log.Info("expiry event without email, skipping mail",
			slog.String("user_uid", event.UserUID))
		return nil
	}

	subject := "Your subscription has expired"
	bodyText := "Hi!\n\nYour workout catalog subscription has expired. Renew it to keep training with us."

	return s.sendEmail([]string{event.Email}, subject, bodyText)
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}
