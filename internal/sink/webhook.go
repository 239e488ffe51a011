package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Webhook POSTs each batch as JSON to a list of URLs.
type Webhook struct {
	urls       []string
	httpClient *http.Client
}

// NewWebhook creates a webhook sink.
func NewWebhook(urls []string, timeout time.Duration) *Webhook {
	return &Webhook{
		urls:       urls,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Publish delivers the batch to every URL. Any non-2xx response is an error.
func (w *Webhook) Publish(ctx context.Context, batch Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	var errs []string
	for _, webhookURL := range w.urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-SmartCost-Event", "alerts.evaluated")
		req.Header.Set("X-SmartCost-Subscription", batch.SubscriptionID)

		resp, err := w.httpClient.Do(req)
		if err != nil {
			errs = append(errs, fmt.Sprintf("webhook %s: %v", webhookURL, err))
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs = append(errs, fmt.Sprintf("webhook %s: status %d", webhookURL, resp.StatusCode))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("webhook errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
