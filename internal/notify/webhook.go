package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// webhookPayload is the JSON body posted to the webhook.
type webhookPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Notification
}

// Webhook posts notifications as JSON.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook notifier posting to url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Notifier.
func (w *Webhook) Name() string { return "webhook" }

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(webhookPayload{
		Type:         "new_items",
		Message:      subject(n),
		Notification: n,
	})
	if err != nil {
		return eris.Wrap(err, "webhook: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "webhook: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "webhook: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("webhook: returned status %d", resp.StatusCode)
	}
	return nil
}
