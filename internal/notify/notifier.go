// Package notify delivers domain events to operators. Delivery is
// best-effort: a failed or slow notification never blocks the engine.
package notify

import (
	"context"
	"time"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/httputil"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

const webhookTimeout = 10 * time.Second

// LogNotifier writes every domain event to the structured log.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) NotifyTargetHit(ctx context.Context, event *contracts.TargetHitEvent) {
	n.logger.WithFields(map[string]interface{}{
		"event":     string(contracts.EventTargetHit),
		"signal_id": event.SignalID,
		"symbol":    event.Symbol,
		"level":     event.Level,
		"price":     event.Price,
	}).Info("Take-profit target hit")
}

func (n *LogNotifier) NotifyStopLossHit(ctx context.Context, event *contracts.StopLossHitEvent) {
	n.logger.WithFields(map[string]interface{}{
		"event":     string(contracts.EventStopLossHit),
		"signal_id": event.SignalID,
		"symbol":    event.Symbol,
		"price":     event.Price,
	}).Info("Stop-loss confirmed")
}

func (n *LogNotifier) NotifySignalCompleted(ctx context.Context, event *contracts.SignalCompletedEvent) {
	fields := map[string]interface{}{
		"event":     string(contracts.EventSignalCompleted),
		"signal_id": event.SignalID,
		"symbol":    event.Symbol,
	}
	if event.Outcome != nil {
		fields["hit_target"] = event.Outcome.HitTarget
		fields["pnl_pips"] = event.Outcome.PnLPips
	}
	n.logger.WithFields(fields).Info("Signal completed")
}

// WebhookNotifier posts domain events as JSON to an external webhook, in
// addition to logging them. Each delivery runs in its own goroutine with its
// own deadline so the reconciliation loop never waits on the network.
type WebhookNotifier struct {
	*LogNotifier

	url    string
	client *httputil.Client
	logger *logger.Logger
}

// NewWebhookNotifier creates a notifier that logs and posts to the webhook.
func NewWebhookNotifier(url string, client *httputil.Client, log *logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		LogNotifier: NewLogNotifier(log),
		url:         url,
		client:      client,
		logger:      log,
	}
}

// webhookPayload is the wire envelope for all event types.
type webhookPayload struct {
	Type contracts.EventType `json:"type"`
	Data interface{}         `json:"data"`
}

func (n *WebhookNotifier) NotifyTargetHit(ctx context.Context, event *contracts.TargetHitEvent) {
	n.LogNotifier.NotifyTargetHit(ctx, event)
	n.post(contracts.EventTargetHit, event)
}

func (n *WebhookNotifier) NotifyStopLossHit(ctx context.Context, event *contracts.StopLossHitEvent) {
	n.LogNotifier.NotifyStopLossHit(ctx, event)
	n.post(contracts.EventStopLossHit, event)
}

func (n *WebhookNotifier) NotifySignalCompleted(ctx context.Context, event *contracts.SignalCompletedEvent) {
	n.LogNotifier.NotifySignalCompleted(ctx, event)
	n.post(contracts.EventSignalCompleted, event)
}

// post delivers asynchronously. The parent context is deliberately not used:
// a notification in flight should survive the tick that produced it.
func (n *WebhookNotifier) post(eventType contracts.EventType, data interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()

		resp, err := n.client.PostJSON(ctx, n.url, webhookPayload{Type: eventType, Data: data})
		if err != nil {
			n.logger.WithError(err).WithField("event", string(eventType)).Warn("Webhook delivery failed")
			return
		}
		resp.Body.Close()
	}()
}
