package notifications

import "roomsync/models"

// Notifier bundles the toast and webhook channels behind the single
// interface the bridge expects.
type Notifier struct {
	toaster  *Toaster
	webhooks *WebhookManager
}

// NewNotifier composes the two delivery channels.
func NewNotifier(toaster *Toaster, webhooks *WebhookManager) *Notifier {
	return &Notifier{toaster: toaster, webhooks: webhooks}
}

// Toast publishes a transient on-screen notification.
func (n *Notifier) Toast(room, level, title, message string) {
	n.toaster.Toast(room, level, title, message)
}

// Notify delivers an alert through the background webhook channel.
func (n *Notifier) Notify(room string, alert models.Alert) {
	n.webhooks.Notify(room, alert)
}
