// Package ingest normalizes raw payment provider events into canonical
// PaymentConfirmation records. Ingestion is a pure function of its input:
// the same raw event always yields the same confirmation or the same
// rejection, and no state is touched here. Deduplication of redelivered
// events happens downstream in the reconciler.
package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/lucasmartins-br/fitgate/internal/models"
)

var (
	// ErrInvalidSignature means the event did not carry a valid HMAC
	// signature and must not be trusted.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent means the payload failed shape or field validation.
	ErrMalformedEvent = errors.New("malformed payment event")
	// ErrIgnoredEvent means the event type carries no confirmation.
	ErrIgnoredEvent = errors.New("ignored payment event type")
)

// EventPixReceived is the only provider event that confirms a payment.
const EventPixReceived = "pix.received"

// Payload is the raw webhook shape the Pix provider delivers.
type Payload struct {
	Event string `json:"event" validate:"required"`
	Pix   struct {
		EndToEndID string `json:"end_to_end_id" validate:"required"`
		TxID       string `json:"txid" validate:"required"`
		Amount     struct {
			Value    string `json:"value" validate:"required"`
			Currency string `json:"currency" validate:"required"`
		} `json:"amount"`
		PaidAt time.Time `json:"paid_at"`
		Payer  struct {
			Email string `json:"email"`
		} `json:"payer"`
		Metadata map[string]string `json:"metadata"`
	} `json:"pix"`
}

// Ingestor validates and normalizes raw provider events.
type Ingestor struct {
	webhookSecret string
	validate      *validator.Validate
	log           *slog.Logger
}

// New creates an Ingestor verifying signatures against the given secret.
func New(webhookSecret string, log *slog.Logger) *Ingestor {
	return &Ingestor{
		webhookSecret: webhookSecret,
		validate:      validator.New(),
		log:           log,
	}
}

// VerifySignature checks the HMAC-SHA256 signature the provider sends in
// the X-Pix-Signature header, base64 encoded over the raw body.
func (i *Ingestor) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(i.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// Ingest turns a raw signed event into a PaymentConfirmation. Rejections
// carry one of the sentinel errors of this package and have no side
// effects, so redelivering the same raw event is always safe.
func (i *Ingestor) Ingest(body []byte, signature string) (*models.PaymentConfirmation, error) {
	const op = "ingest.Ingest"

	if signature == "" || !i.VerifySignature(body, signature) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedEvent, err)
	}

	if !strings.EqualFold(payload.Event, EventPixReceived) {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrIgnoredEvent, payload.Event)
	}

	if err := i.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedEvent, err)
	}

	userUID, ok := payload.Pix.Metadata["user_uid"]
	if !ok || userUID == "" {
		return nil, fmt.Errorf("%s: %w: missing user_uid metadata", op, ErrMalformedEvent)
	}

	amountCents, err := ParseAmount(payload.Pix.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedEvent, err)
	}

	confirmedAt := payload.Pix.PaidAt
	if confirmedAt.IsZero() {
		confirmedAt = time.Now().UTC()
	}

	return &models.PaymentConfirmation{
		IdempotencyKey: payload.Pix.EndToEndID,
		PaymentRef:     payload.Pix.TxID,
		UserUID:        userUID,
		AmountCents:    amountCents,
		Currency:       strings.ToUpper(payload.Pix.Amount.Currency),
		ConfirmedAt:    confirmedAt,
		PayerEmail:     payload.Pix.Payer.Email,
	}, nil
}

// ParseAmount converts a provider decimal string like "49.90" into
// centavos. At most two fraction digits are accepted.
func ParseAmount(value string) (int64, error) {
	intPart := value
	fracPart := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		intPart = value[:idx]
		fracPart = value[idx+1:]
	}
	if intPart == "" || len(fracPart) > 2 {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || whole < 0 {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	var frac int64
	if fracPart != "" {
		frac, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil || frac < 0 {
			return 0, fmt.Errorf("invalid amount %q", value)
		}
		if len(fracPart) == 1 {
			frac *= 10
		}
	}
	return whole*100 + frac, nil
}
