package notifications

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"roomsync/config"
	"roomsync/helpers"
	"roomsync/metrics"
	"roomsync/models"
)

const (
	webhookRetries    = 3
	webhookRetryDelay = 2 * time.Second
)

// WebhookManager delivers alert notifications to configured endpoints. This
// is the daemon analog of the browser notification channel: it fires for
// alerts the viewer would otherwise miss with the tab in the background.
type WebhookManager struct {
	hooks  []config.Webhook
	client *http.Client
	log    zerolog.Logger
}

// WebhookPayload is the JSON body sent to each endpoint.
type WebhookPayload struct {
	RoomSlug    string    `json:"room_slug"`
	AlertID     int64     `json:"alert_id"`
	AlertType   string    `json:"alert_type"`
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	TOSString   string    `json:"tos_string,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Text        string    `json:"text"`
}

// NewWebhookManager creates a webhook manager over the configured hooks.
func NewWebhookManager(hooks []config.Webhook, log zerolog.Logger) *WebhookManager {
	return &WebhookManager{
		hooks: hooks,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("component", "webhooks").Logger(),
	}
}

// Notify fans the alert out to every matching webhook, asynchronously.
func (wm *WebhookManager) Notify(room string, alert models.Alert) {
	if len(wm.hooks) == 0 {
		return
	}

	payload := wm.createPayload(room, alert)
	body, err := json.Marshal(payload)
	if err != nil {
		wm.log.Error().Err(err).Msg("webhook payload marshal failed")
		return
	}

	for _, hook := range wm.hooks {
		if wm.shouldSend(hook, room, alert) {
			go wm.deliver(hook, body)
		}
	}
}

// createPayload builds the notification body, including a ready-to-post
// text line like "ENTRY NVDA - Scaling in | 12m ago".
func (wm *WebhookManager) createPayload(room string, alert models.Alert) WebhookPayload {
	text := string(alert.AlertType) + " " + alert.Ticker
	if alert.Title != "" {
		text += " - " + alert.Title
	}
	text += " | " + helpers.FormatTimeAgo(alert.PublishedAt)

	return WebhookPayload{
		RoomSlug:    room,
		AlertID:     alert.ID,
		AlertType:   string(alert.AlertType),
		Ticker:      alert.Ticker,
		Title:       alert.Title,
		Message:     alert.Message,
		TOSString:   alert.TOSString,
		PublishedAt: alert.PublishedAt,
		Text:        text,
	}
}

func (wm *WebhookManager) shouldSend(hook config.Webhook, room string, alert models.Alert) bool {
	// Room filter (comma-separated; empty means all rooms)
	if hook.Rooms != "" && !strings.Contains(hook.Rooms, room) {
		return false
	}

	// Alert type filter
	if hook.AlertTypes != "" && !strings.Contains(hook.AlertTypes, string(alert.AlertType)) {
		return false
	}

	return true
}

func (wm *WebhookManager) deliver(hook config.Webhook, body []byte) {
	for attempt := 1; attempt <= webhookRetries; attempt++ {
		req, err := http.NewRequest(http.MethodPost, hook.URL, bytes.NewReader(body))
		if err != nil {
			wm.log.Error().Err(err).Str("url", hook.URL).Msg("webhook request build failed")
			metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "roomsync/1.0")
		if hook.AuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+hook.AuthToken)
		}

		resp, err := wm.client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			resp.Body.Close()
			metrics.WebhookDeliveries.WithLabelValues("success").Inc()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}

		if attempt < webhookRetries {
			time.Sleep(webhookRetryDelay)
		}
	}

	wm.log.Warn().Str("url", hook.URL).Int("attempts", webhookRetries).Msg("⚠️  Webhook delivery failed")
	metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
}
