// Package paymentprovider implements the optional outbound poll against
// the Pix provider API. The engine never initiates payments; polling is
// only used by the sweep to double-check a pending attempt before it is
// timed out, in case the webhook for a completed payment was lost.
package paymentprovider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Client calls the Pix provider REST API with basic auth credentials.
type Client struct {
	clientID     string
	clientSecret string
	apiURL       string
	httpClient   *http.Client
}

// NewClient creates a provider client for the given credentials.
func NewClient(clientID, clientSecret, apiURL string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiURL:       apiURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// ChargeStatus is the provider's view of one charge.
type ChargeStatus struct {
	TxID       string    `json:"txid"`
	EndToEndID string    `json:"end_to_end_id"`
	Status     string    `json:"status"` // "concluded" once the payment settled
	Amount     Amount    `json:"amount"`
	PaidAt     time.Time `json:"paid_at"`
	Payer      struct {
		Email string `json:"email"`
	} `json:"payer"`
	Metadata map[string]string `json:"metadata"`
}

// Amount is a decimal money value as the provider serializes it.
type Amount struct {
	Value    string `json:"value"`    // e.g. "49.90"
	Currency string `json:"currency"` // e.g. "BRL"
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, nil)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// GetCharge polls the status of a charge by its txid. The second return
// value is false when the provider does not know the charge.
func (c *Client) GetCharge(ctx context.Context, txid string) (*ChargeStatus, bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/charges/"+txid)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, errors.New("unexpected status: " + resp.Status)
	}

	var status ChargeStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, false, fmt.Errorf("decode charge status: %w", err)
	}
	return &status, true, nil
}
