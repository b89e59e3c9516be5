package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookAlerter posts alerts to an HTTP endpoint. Delivery is best effort
// and never gates trading decisions: failures are logged and dropped. An
// empty URL disables delivery entirely.
type WebhookAlerter struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookAlerter(url string, logger *zap.Logger) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

type alertPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

func (w *WebhookAlerter) PublishAlert(ctx context.Context, title, message string) {
	w.logger.Info("alert", zap.String("title", title), zap.String("message", message))
	if w.url == "" {
		return
	}

	body, err := json.Marshal(alertPayload{
		Title:   title,
		Message: message,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("alert webhook request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("alert webhook delivery failed", zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		w.logger.Warn("alert webhook rejected",
			zap.Int("status", resp.StatusCode), zap.String("title", title))
	}
}
