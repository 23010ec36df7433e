package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomsync/metrics"
	"roomsync/models"
)

// State classifies the connection lifecycle for consumers. Reconnecting is a
// transient sub-state between a drop and a successful redial.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// ConnectionManager handles WebSocket connection lifecycle, health monitoring,
// and reconnection. It fans decoded events out to subscribers; bridges above
// never touch the transport directly.
type ConnectionManager struct {
	wsURL string
	token string
	rooms []string
	log   zerolog.Logger

	pingInterval   time.Duration
	staleAfter     time.Duration
	reconnectDelay time.Duration
	maxReconnect   time.Duration

	mu          sync.RWMutex
	client      *Client
	state       State
	lastMsgTime time.Time
	subscribers map[int64]func(models.Event)
	nextSubID   int64
}

// NewConnectionManager creates a connection manager for the given rooms.
func NewConnectionManager(wsURL, token string, rooms []string, pingInterval, staleAfter, reconnectDelay, maxReconnect time.Duration, log zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		wsURL:          wsURL,
		token:          token,
		rooms:          rooms,
		log:            log.With().Str("component", "ws").Strs("rooms", rooms).Logger(),
		pingInterval:   pingInterval,
		staleAfter:     staleAfter,
		reconnectDelay: reconnectDelay,
		maxReconnect:   maxReconnect,
		state:          StateDisconnected,
		lastMsgTime:    time.Now(),
		subscribers:    make(map[int64]func(models.Event)),
	}
}

// Subscribe registers an event handler and returns its unsubscribe function.
// Handlers run on the read-loop goroutine; slow work belongs elsewhere.
func (cm *ConnectionManager) Subscribe(handler func(models.Event)) func() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	id := cm.nextSubID
	cm.nextSubID++
	cm.subscribers[id] = handler

	return func() {
		cm.mu.Lock()
		defer cm.mu.Unlock()
		delete(cm.subscribers, id)
	}
}

// State returns the current classified connection state.
func (cm *ConnectionManager) State() State {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.state
}

func (cm *ConnectionManager) setState(s State) {
	cm.mu.Lock()
	cm.state = s
	cm.mu.Unlock()
}

// Connect establishes the initial WebSocket connection and subscribes.
func (cm *ConnectionManager) Connect() error {
	cm.setState(StateConnecting)

	client := NewClient(cm.wsURL, cm.token, cm.log)
	if err := client.Connect(); err != nil {
		cm.setState(StateDisconnected)
		return err
	}
	if err := client.SubscribeToRooms(cm.rooms); err != nil {
		_ = client.Close()
		cm.setState(StateDisconnected)
		return err
	}
	client.StartPing(cm.pingInterval)

	cm.mu.Lock()
	cm.client = client
	cm.state = StateConnected
	cm.lastMsgTime = time.Now()
	cm.mu.Unlock()
	return nil
}

// Reconnect tears down the current connection and dials again.
func (cm *ConnectionManager) Reconnect() error {
	_ = cm.Close()
	cm.setState(StateReconnecting)
	metrics.Reconnects.Inc()

	if err := cm.Connect(); err != nil {
		cm.setState(StateReconnecting)
		return err
	}

	cm.log.Info().Msg("✅ Reconnection successful")
	return nil
}

// Run reads messages and dispatches them to subscribers until the context is
// canceled. Read errors trigger reconnection with exponential backoff.
func (cm *ConnectionManager) Run(ctx context.Context) {
	delay := cm.reconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cm.mu.RLock()
		client := cm.client
		cm.mu.RUnlock()

		if client == nil {
			cm.waitOrDone(ctx, delay)
			continue
		}

		event, err := client.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}

			cm.log.Warn().Err(err).Msg("⚠️  WebSocket read error")
			cm.setState(StateReconnecting)

			if !cm.waitOrDone(ctx, delay) {
				return
			}

			if err := cm.Reconnect(); err != nil {
				cm.log.Error().Err(err).Dur("next_retry", delay).Msg("❌ Reconnection failed")
				delay *= 2
				if delay > cm.maxReconnect {
					delay = cm.maxReconnect
				}
				continue
			}

			delay = cm.reconnectDelay
			continue
		}

		cm.mu.Lock()
		cm.lastMsgTime = time.Now()
		handlers := make([]func(models.Event), 0, len(cm.subscribers))
		for _, h := range cm.subscribers {
			handlers = append(handlers, h)
		}
		cm.mu.Unlock()

		for _, h := range handlers {
			h(*event)
		}
	}
}

// waitOrDone sleeps for d unless the context ends first.
func (cm *ConnectionManager) waitOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// RunHealthMonitor reconnects when the stream goes quiet for too long.
func (cm *ConnectionManager) RunHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	cm.log.Info().Msg("💓 WebSocket health monitoring started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.mu.RLock()
			quiet := time.Since(cm.lastMsgTime)
			cm.mu.RUnlock()

			if quiet > cm.staleAfter {
				cm.log.Warn().Dur("quiet", quiet.Round(time.Second)).Msg("⚠️  Stream stale, reconnecting")
				if err := cm.Reconnect(); err != nil {
					cm.log.Error().Err(err).Msg("❌ Health reconnect failed")
				} else {
					cm.mu.Lock()
					cm.lastMsgTime = time.Now()
					cm.mu.Unlock()
				}
			}
		}
	}
}

// Close closes the connection.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	client := cm.client
	cm.client = nil
	cm.state = StateDisconnected
	cm.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}
