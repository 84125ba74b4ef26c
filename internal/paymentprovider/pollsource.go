package paymentprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/lucasmartins-br/fitgate/internal/models"
	"github.com/lucasmartins-br/fitgate/internal/services/ingest"
)

// PollSource adapts the provider client to the reconciler's poller
// contract, yielding canonical confirmations for settled charges only.
type PollSource struct {
	client *Client
}

// NewPollSource wraps a provider client.
func NewPollSource(client *Client) *PollSource {
	return &PollSource{client: client}
}

// GetCharge polls one charge and normalizes it. A charge that exists but
// has not settled yet is reported as not found: there is nothing to apply.
func (p *PollSource) GetCharge(ctx context.Context, txid string) (*models.PaymentConfirmation, bool, error) {
	const op = "paymentprovider.GetCharge"

	status, found, err := p.client.GetCharge(ctx, txid)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !found || !strings.EqualFold(status.Status, "concluded") {
		return nil, false, nil
	}

	userUID, ok := status.Metadata["user_uid"]
	if !ok || userUID == "" {
		return nil, false, fmt.Errorf("%s: charge %s has no user_uid metadata", op, txid)
	}

	amountCents, err := ingest.ParseAmount(status.Amount.Value)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return &models.PaymentConfirmation{
		IdempotencyKey: status.EndToEndID,
		PaymentRef:     status.TxID,
		UserUID:        userUID,
		AmountCents:    amountCents,
		Currency:       strings.ToUpper(status.Amount.Currency),
		ConfirmedAt:    status.PaidAt,
		PayerEmail:     status.Payer.Email,
	}, true, nil
}
