package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/weather-data-etl/internal/pipeline"
)

const defaultWebhookTimeout = 10 * time.Second

// Webhook posts alerts as JSON to a configured URL. The payload carries a
// top-level "text" field, so a Slack-style incoming webhook renders the
// summary with no mapping layer in between.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type webhookPayload struct {
	Text  string `json:"text"`
	Event Event  `json:"event"`
}

func (w *Webhook) Notify(ctx context.Context, report *pipeline.RunReport) error {
	event := eventFromReport(report)
	body, err := json.Marshal(webhookPayload{Text: event.Summary, Event: event})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post alert: status %d: %s", resp.StatusCode, detail)
	}
	w.logger.Debug("alert delivered",
		slog.String("run_id", event.RunID),
		slog.String("status", event.Status))
	return nil
}
