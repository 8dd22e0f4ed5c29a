package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sales-service/internal/models"
	"sales-service/internal/util"
)

// webhookIDs maps each lifecycle event to its fixed chat4sales webhook.
var webhookIDs = map[string]string{
	models.EventTypeBudgetCreated:     "0d9c46b2-6b1a-4a2e-9a5d-3f8b2c7e1a40",
	models.EventTypeProposalSent:      "5b1e8c4a-2f7d-4e3b-8a96-c0d512f9b371",
	models.EventTypeProposalAccepted:  "8f3a217e-9c5b-4d68-b24a-6e1f0d8c5a92",
	models.EventTypeProposalRejected:  "c67d90b4-1e2a-48f3-a5c8-7b3d4f216e05",
	models.EventTypeOrderInProduction: "2a84f6d1-7c3e-49b5-8d20-e9a1b5c4f783",
	models.EventTypeOrderDispatched:   "e15b3c78-4a9d-42f6-b081-2c6d7e9f0a54",
	models.EventTypeOrderCompleted:    "79d2e4f0-8b16-4c3a-95d7-1a0b8e6c243f",
	models.EventTypeOrderCancelled:    "4c0a72e9-d518-46bf-a3c2-8e795b1d60f4",
	models.EventTypeClientCreated:     "b38e51c7-06f2-4d9a-bc45-97a0e3d821b6",
}

// Notifier POSTs event payloads to the per-event webhook URLs.
// Dispatch is fire-and-forget: failures are logged and counted, never
// retried, and never surfaced to the primary operation.
type Notifier struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewNotifier creates a new webhook notifier.
func NewNotifier(baseURL string) *Notifier {
	return &Notifier{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  util.GetLogger(),
	}
}

// Dispatch sends one event payload. Events without a registered webhook
// are silently skipped.
func (n *Notifier) Dispatch(ctx context.Context, eventType string, payload interface{}) {
	webhookID, ok := webhookIDs[eventType]
	if !ok {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("Failed to marshal webhook payload",
			zap.String("event", eventType),
			zap.Error(err))
		util.WebhookDispatchTotal.WithLabelValues(eventType, "error").Inc()
		return
	}

	url := fmt.Sprintf("%s/%s", n.baseURL, webhookID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("Failed to build webhook request",
			zap.String("event", eventType),
			zap.Error(err))
		util.WebhookDispatchTotal.WithLabelValues(eventType, "error").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logger.Warn("Webhook dispatch failed",
			zap.String("event", eventType),
			zap.Error(err))
		util.WebhookDispatchTotal.WithLabelValues(eventType, "error").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("Webhook rejected dispatch",
			zap.String("event", eventType),
			zap.Int("status", resp.StatusCode))
		util.WebhookDispatchTotal.WithLabelValues(eventType, "rejected").Inc()
		return
	}

	util.WebhookDispatchTotal.WithLabelValues(eventType, "ok").Inc()
}
