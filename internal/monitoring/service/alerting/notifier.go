package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
)

// WebhookNotifier posts alert lifecycle events to an HTTP endpoint. Delivery
// is best effort: failures are logged and dropped, never retried, and never
// fail the alert transition that produced them.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookEvent struct {
	Event      string       `json:"event"`
	Alert      *model.Alert `json:"alert"`
	OccurredAt time.Time    `json:"occurred_at"`
}

func (n *WebhookNotifier) NotifyAlertTriggered(ctx context.Context, a *model.Alert) {
	n.post(ctx, webhookEvent{Event: "alert.triggered", Alert: a, OccurredAt: time.Now().UTC()})
}

func (n *WebhookNotifier) NotifyAlertResolved(ctx context.Context, a *model.Alert) {
	n.post(ctx, webhookEvent{Event: "alert.resolved", Alert: a, OccurredAt: time.Now().UTC()})
}

func (n *WebhookNotifier) post(ctx context.Context, ev webhookEvent) {
	if n.url == "" {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Event).Msg("marshal webhook event failed")
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("event", ev.Event).Msg("build webhook request failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("event", ev.Event).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Str("event", ev.Event).Str("status", fmt.Sprintf("%d", resp.StatusCode)).Msg("webhook rejected event")
		return
	}
	log.Debug().Str("event", ev.Event).Str("alert_id", ev.Alert.ID).Msg("webhook event delivered")
}

// NopNotifier discards all events. Used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) NotifyAlertTriggered(context.Context, *model.Alert) {}
func (NopNotifier) NotifyAlertResolved(context.Context, *model.Alert) {}
