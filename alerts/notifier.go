package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"craftfolio/analytics/models"
)

// Sink delivers one alert to a notification channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, alert Alert) error
}

// Notifier fans alerts out to its sinks. Delivery is fire-and-forget per
// sink: one sink failing is logged and never blocks the others or the
// evaluation that produced the alerts.
type Notifier struct {
	sinks     []Sink
	onFailure func()
}

func NewNotifier(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// SetFailureHook registers a callback fired on each failed delivery.
func (n *Notifier) SetFailureHook(fn func()) {
	n.onFailure = fn
}

// Dispatch delivers every alert to every sink.
func (n *Notifier) Dispatch(ctx context.Context, alerts []Alert) {
	for _, alert := range alerts {
		for _, sink := range n.sinks {
			if err := sink.Deliver(ctx, alert); err != nil {
				if n.onFailure != nil {
					n.onFailure()
				}
				log.Error().Err(err).
					Str("sink", sink.Name()).
					Str("alert", alert.Title).
					Msg("alert delivery failed")
			}
		}
	}
}

// WebhookSink posts alerts as JSON to a configured URL with a bounded
// timeout.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(map[string]interface{}{
		"title":     alert.Title,
		"message":   alert.Message,
		"timestamp": alert.Timestamp.Format(time.RFC3339),
		"source":    alert.Source,
	})
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w: %w", err, models.ErrDeliveryFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d: %w", resp.StatusCode, models.ErrDeliveryFailed)
	}
	return nil
}

// LogSink writes alerts to the structured log. It never fails; it exists so
// alerting still has a destination when no webhook is configured.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(ctx context.Context, alert Alert) error {
	log.Warn().
		Str("title", alert.Title).
		Str("severity", alert.Severity).
		Str("source", alert.Source).
		Msg(alert.Message)
	return nil
}
