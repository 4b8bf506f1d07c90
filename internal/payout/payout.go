// Package payout moves withdrawn escrow funds to sellers through an
// external payments gateway.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Provider sends funds to an account. A non-nil error means no funds
// moved and the caller must restore the escrow balance.
type Provider interface {
	Send(ctx context.Context, payoutID, account string, amount int64) error
}

// Webhook posts payout orders to a treasury gateway URL as JSON. Any
// non-2xx response is treated as a failed transfer.
type Webhook struct {
	client *http.Client
	url    string
}

// NewWebhook creates a webhook provider targeting url.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

type webhookOrder struct {
	PayoutID string `json:"payout_id"`
	Account  string `json:"account"`
	Amount   int64  `json:"amount"`
}

// Send posts the payout order and fails on any non-2xx status.
func (w *Webhook) Send(ctx context.Context, payoutID, account string, amount int64) error {
	body, err := json.Marshal(webhookOrder{PayoutID: payoutID, Account: account, Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to encode payout order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("payout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("payout gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// Noop accepts every payout without moving funds. Development only.
type Noop struct{}

// Send logs the order and succeeds.
func (Noop) Send(ctx context.Context, payoutID, account string, amount int64) error {
	log.Printf("[payout] noop: payout %s of %d to %s", payoutID, amount, account)
	return nil
}
