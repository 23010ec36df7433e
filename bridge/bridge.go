// Package bridge translates the realtime event stream into store mutations
// and targeted re-fetches for one room. It never mutates state directly:
// all writes go through the narrow StoreMutator port, preserving the
// store's single-writer discipline. Transport reconnection and backoff are
// delegated entirely to the websocket package; the bridge only reacts to
// classified connection states and decoded events.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomsync/metrics"
	"roomsync/models"
	"roomsync/websocket"
)

// StoreMutator is the only surface the bridge may touch on the store: the
// mutation entry points plus the targeted re-fetch triggers.
type StoreMutator interface {
	PrependAlert(alert models.Alert) bool
	UpdateAlert(alert models.Alert) bool
	RemoveAlert(alertID int64) bool
	SetStats(stats models.RoomStats)

	FetchAlerts(ctx context.Context) error
	FetchAllTrades(ctx context.Context) error
	FetchStats(ctx context.Context) error
	FetchTradePlan(ctx context.Context) error
}

// Notifier surfaces user-facing notifications for accepted events.
type Notifier interface {
	// Toast publishes a transient on-screen notification.
	Toast(room, level, title, message string)
	// Notify delivers an alert through the background channel (webhooks).
	Notify(room string, alert models.Alert)
}

// Connection is the transport surface the bridge subscribes to.
type Connection interface {
	Subscribe(handler func(models.Event)) (unsubscribe func())
	State() websocket.State
}

// Journal records accepted events for audit/history. May be nil.
type Journal interface {
	RecordAlertEvent(event string, alert models.Alert)
	RecordTradeEvent(event string, trade models.Trade)
}

// Broadcaster fans accepted mutations out to dashboard clients.
// Satisfied by *realtime.Broker.
type Broadcaster interface {
	Broadcast(event, room string, payload interface{})
}

// Options tunes bridge behavior.
type Options struct {
	BadgeWindow   time.Duration // how long an alert stays "new"
	SweepInterval time.Duration // badge expiry sweep cadence
	StatePoll     time.Duration // connection-state poll cadence
	RefetchLimit  time.Duration // timeout for triggered re-fetches
	DedupWindow   time.Duration // how long accepted alert IDs are remembered
}

func (o *Options) applyDefaults() {
	if o.BadgeWindow <= 0 {
		o.BadgeWindow = 30 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Second
	}
	if o.StatePoll <= 0 {
		o.StatePoll = 2 * time.Second
	}
	if o.RefetchLimit <= 0 {
		o.RefetchLimit = 10 * time.Second
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = time.Hour
	}
}

// Bridge wires one room's event stream to its store.
type Bridge struct {
	room     string
	conn     Connection
	store    StoreMutator
	notifier Notifier
	journal  Journal
	opts     Options
	log      zerolog.Logger

	// OnStatusChange, when set, observes classified connection-state
	// transitions. Called from the state-poll goroutine.
	OnStatusChange func(websocket.State)

	// Events, when set, receives a typed event for every accepted store
	// mutation so SSE dashboards stay in sync without re-polling.
	Events Broadcaster

	mu          sync.Mutex
	connected   bool
	unsubscribe func()
	cancel      context.CancelFunc
	seen        map[int64]time.Time // alert ID -> accept time; evicted after DedupWindow
	fresh       map[int64]time.Time
	unread      int
	status      websocket.State
}

// New creates a bridge for one room. journal may be nil.
func New(room string, conn Connection, store StoreMutator, notifier Notifier, journal Journal, opts Options, log zerolog.Logger) *Bridge {
	opts.applyDefaults()
	return &Bridge{
		room:     room,
		conn:     conn,
		store:    store,
		notifier: notifier,
		journal:  journal,
		opts:     opts,
		log:      log.With().Str("component", "bridge").Str("room", room).Logger(),
		seen:     make(map[int64]time.Time),
		fresh:    make(map[int64]time.Time),
		status:   websocket.StateDisconnected,
	}
}

// Connect subscribes to the event stream and starts the badge sweep and
// connection-state poll. No-op when already connected, so repeated mounts
// cannot leak a second subscription/ticker pair.
func (b *Bridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.unsubscribe = b.conn.Subscribe(b.handleEvent)

	go b.runBadgeSweep(ctx)
	go b.runStatePoll(ctx)

	b.connected = true
	b.log.Info().Msg("🔌 Realtime bridge connected")
	return nil
}

// Disconnect tears down everything Connect acquired: the message
// subscription, both tickers, and all pending badge expirations. A
// subsequent Connect establishes a fresh subscription.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return
	}

	b.unsubscribe()
	b.unsubscribe = nil
	b.cancel()
	b.cancel = nil
	b.fresh = make(map[int64]time.Time)
	b.connected = false
	b.log.Info().Msg("🛑 Realtime bridge disconnected")
}

// Connected reports whether the bridge currently holds a subscription.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Status returns the last observed connection state.
func (b *Bridge) Status() websocket.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// UnreadCount returns the number of alerts pushed since the last MarkAllRead.
func (b *Bridge) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unread
}

// MarkAllRead resets the unread counter.
func (b *Bridge) MarkAllRead() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unread = 0
}

// FreshIDs returns the alert IDs still inside the "new" badge window.
func (b *Bridge) FreshIDs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]int64, 0, len(b.fresh))
	now := time.Now()
	for id, expiry := range b.fresh {
		if expiry.After(now) {
			out = append(out, id)
		}
	}
	return out
}

// handleEvent routes one decoded message. Runs on the transport's dispatch
// goroutine; re-fetches are spawned so a slow API call never stalls reads.
func (b *Bridge) handleEvent(event models.Event) {
	metrics.EventsReceived.WithLabelValues(string(event.Type)).Inc()

	// Multi-tenant isolation: other rooms' messages are silently discarded.
	if room := event.Room(); room != b.room {
		metrics.EventsDropped.WithLabelValues("room_mismatch").Inc()
		return
	}

	switch event.Type {
	case models.EventAlertCreated:
		b.onAlertCreated(event)
	case models.EventAlertUpdated:
		b.onAlertUpdated(event)
	case models.EventAlertDeleted:
		b.onAlertDeleted(event)
	case models.EventTradeCreated, models.EventTradeUpdated:
		b.onTradeEvent(event, false)
	case models.EventTradeClosed, models.EventTradeInvalidated:
		b.onTradeEvent(event, true)
	case models.EventStatsUpdated:
		b.onStatsUpdated(event)
	case models.EventTradePlanCreated, models.EventTradePlanUpdated, models.EventTradePlanDeleted:
		// No incremental patching for trade plan events: always re-fetch.
		b.publish("trade-plan-changed", nil)
		b.refetch("trade plan", b.store.FetchTradePlan)
	case models.EventError:
		b.onError(event)
	default:
		b.log.Debug().Str("type", string(event.Type)).Msg("unhandled event type")
	}
}

func (b *Bridge) onAlertCreated(event models.Event) {
	alert, err := event.DecodeAlert()
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		b.log.Warn().Err(err).Msg("bad AlertCreated payload")
		return
	}

	b.mu.Lock()
	if _, dup := b.seen[alert.ID]; dup {
		b.mu.Unlock()
		metrics.EventsDropped.WithLabelValues("duplicate").Inc()
		return
	}
	b.seen[alert.ID] = time.Now()
	b.fresh[alert.ID] = time.Now().Add(b.opts.BadgeWindow)
	b.unread++
	b.mu.Unlock()

	alert.IsNew = true
	if !b.store.PrependAlert(alert) {
		// Store already had it (e.g. from a snapshot fetch racing the push).
		return
	}

	if b.journal != nil {
		b.journal.RecordAlertEvent("created", alert)
	}

	b.publish("alert-created", alert)
	title := fmt.Sprintf("%s Alert: %s", alert.AlertType, alert.Ticker)
	b.notifier.Toast(b.room, "info", title, alert.Title)
	b.notifier.Notify(b.room, alert)

	b.log.Info().Int64("id", alert.ID).Str("ticker", alert.Ticker).Msg("🔔 Alert received")
}

func (b *Bridge) onAlertUpdated(event models.Event) {
	alert, err := event.DecodeAlert()
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return
	}

	b.store.UpdateAlert(alert)

	b.mu.Lock()
	delete(b.fresh, alert.ID)
	b.mu.Unlock()

	if b.journal != nil {
		b.journal.RecordAlertEvent("updated", alert)
	}
	b.publish("alert-updated", alert)
}

func (b *Bridge) onAlertDeleted(event models.Event) {
	deleted, err := event.DecodeAlertDeleted()
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return
	}

	b.store.RemoveAlert(deleted.ID)

	b.mu.Lock()
	delete(b.fresh, deleted.ID)
	delete(b.seen, deleted.ID)
	b.mu.Unlock()

	if b.journal != nil {
		b.journal.RecordAlertEvent("deleted", models.Alert{ID: deleted.ID, RoomSlug: deleted.RoomSlug})
	}
	b.publish("alert-deleted", deleted)
}

// onTradeEvent re-fetches the trades list instead of patching in place:
// P&L recomputation is server-authoritative. Closed/invalidated trades also
// refresh stats.
func (b *Bridge) onTradeEvent(event models.Event, refreshStats bool) {
	trade, err := event.DecodeTrade()
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return
	}

	if b.journal != nil {
		b.journal.RecordTradeEvent(tradeEventName(event.Type), trade)
	}

	b.publish("trade-"+tradeEventName(event.Type), trade)
	b.refetch("trades", b.store.FetchAllTrades)
	if refreshStats {
		b.refetch("stats", b.store.FetchStats)
	}
}

func tradeEventName(t models.EventType) string {
	switch t {
	case models.EventTradeCreated:
		return "created"
	case models.EventTradeClosed:
		return "closed"
	case models.EventTradeUpdated:
		return "updated"
	case models.EventTradeInvalidated:
		return "invalidated"
	}
	return "unknown"
}

func (b *Bridge) onStatsUpdated(event models.Event) {
	stats, err := event.DecodeStats()
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	b.store.SetStats(stats.Stats)
	b.publish("stats-updated", stats.Stats)
}

// onError surfaces a protocol error as a toast. The connection stays open.
func (b *Bridge) onError(event models.Event) {
	errEvent, err := event.DecodeError()
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	b.notifier.Toast(b.room, "error", "Realtime error", errEvent.Message)
}

// publish forwards one typed mutation event to the dashboard fan-out.
func (b *Bridge) publish(event string, payload interface{}) {
	if b.Events != nil {
		b.Events.Broadcast(event, b.room, payload)
	}
}

// refetch runs a store fetch on its own goroutine with a bounded context.
func (b *Bridge) refetch(what string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.opts.RefetchLimit)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.log.Warn().Err(err).Str("resource", what).Msg("triggered re-fetch failed")
		}
	}()
}

// runBadgeSweep expires "new" badges and evicts aged dedup entries. One
// ticker sweeps both maps; there is deliberately no per-alert timer to leak,
// and the dedup set stays bounded over the daemon's lifetime.
func (b *Bridge) runBadgeSweep(ctx context.Context) {
	ticker := time.NewTicker(b.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			b.mu.Lock()
			for id, expiry := range b.fresh {
				if !expiry.After(now) {
					delete(b.fresh, id)
				}
			}
			for id, acceptedAt := range b.seen {
				if now.Sub(acceptedAt) > b.opts.DedupWindow {
					delete(b.seen, id)
				}
			}
			b.mu.Unlock()
		}
	}
}

// runStatePoll watches the transport's classified state. On the transition
// back to connected it re-fetches the gap: there is no replay protocol, so a
// missed window must be covered by snapshot fetches.
func (b *Bridge) runStatePoll(ctx context.Context) {
	ticker := time.NewTicker(b.opts.StatePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := b.conn.State()

			b.mu.Lock()
			prev := b.status
			b.status = state
			b.mu.Unlock()

			if state == prev {
				continue
			}

			if b.OnStatusChange != nil {
				b.OnStatusChange(state)
			}

			if state == websocket.StateConnected && (prev == websocket.StateReconnecting || prev == websocket.StateDisconnected) {
				b.log.Info().Msg("🔄 Reconnected, refreshing snapshots")
				b.refetch("alerts", b.store.FetchAlerts)
				b.refetch("trades", b.store.FetchAllTrades)
				b.refetch("stats", b.store.FetchStats)
			}
		}
	}
}
