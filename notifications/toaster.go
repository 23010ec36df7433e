// Package notifications drives user-facing notifications: transient toasts
// pushed to dashboard browsers through the SSE broker, and background alert
// fan-out to configured webhooks.
package notifications

import (
	"roomsync/metrics"
)

// Broadcaster is the fan-out surface the toaster publishes through.
// Satisfied by *realtime.Broker.
type Broadcaster interface {
	Broadcast(event, room string, payload interface{})
}

// ToastPayload is the show-toast event body consumed by the dashboard.
// Sound is a hint; playback is the client's decision and off by default.
type ToastPayload struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Sound   bool   `json:"sound"`
}

// Toaster publishes show-toast events scoped to one room's viewers.
type Toaster struct {
	broker Broadcaster
}

// NewToaster creates a toaster over the given broadcaster.
func NewToaster(broker Broadcaster) *Toaster {
	return &Toaster{broker: broker}
}

// Toast publishes one transient notification.
func (t *Toaster) Toast(room, level, title, message string) {
	t.broker.Broadcast("show-toast", room, ToastPayload{
		Level:   level,
		Title:   title,
		Message: message,
		Sound:   false,
	})
	metrics.ToastsSent.Inc()
}
