package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsync/config"
	"roomsync/models"
)

func testAlert() models.Alert {
	return models.Alert{
		ID:          7,
		RoomSlug:    "explosive-swings",
		AlertType:   models.AlertEntry,
		Ticker:      "NVDA",
		Title:       "Scaling in",
		PublishedAt: time.Now().Add(-12 * time.Minute),
	}
}

func TestWebhookDelivery(t *testing.T) {
	received := make(chan WebhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var payload WebhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer srv.Close()

	wm := NewWebhookManager([]config.Webhook{{URL: srv.URL, AuthToken: "secret"}}, zerolog.Nop())
	wm.Notify("explosive-swings", testAlert())

	select {
	case payload := <-received:
		assert.Equal(t, int64(7), payload.AlertID)
		assert.Equal(t, "ENTRY", payload.AlertType)
		assert.Contains(t, payload.Text, "ENTRY NVDA")
		assert.Contains(t, payload.Text, "12m ago")
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestWebhookFilters(t *testing.T) {
	wm := NewWebhookManager(nil, zerolog.Nop())

	cases := []struct {
		name string
		hook config.Webhook
		want bool
	}{
		{"no filters", config.Webhook{}, true},
		{"room match", config.Webhook{Rooms: "explosive-swings,spx-profit-pulse"}, true},
		{"room mismatch", config.Webhook{Rooms: "spx-profit-pulse"}, false},
		{"type match", config.Webhook{AlertTypes: "ENTRY,EXIT"}, true},
		{"type mismatch", config.Webhook{AlertTypes: "EXIT"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, wm.shouldSend(tc.hook, "explosive-swings", testAlert()))
		})
	}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
	rooms  []string
}

func (r *recordingBroadcaster) Broadcast(event, room string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.rooms = append(r.rooms, room)
}

func TestToasterPublishesShowToast(t *testing.T) {
	rec := &recordingBroadcaster{}
	toaster := NewToaster(rec)

	toaster.Toast("explosive-swings", "info", "ENTRY Alert: NVDA", "Scaling in")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 1)
	assert.Equal(t, "show-toast", rec.events[0])
	assert.Equal(t, "explosive-swings", rec.rooms[0])
}
