// Package realtime fans room events out to dashboard browsers over
// Server-Sent Events. Browsers subscribe to /api/events (optionally
// filtered to one room) instead of holding the upstream socket themselves.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// subscriber is one connected SSE client. An empty room means "all rooms".
type subscriber struct {
	ch   chan []byte
	room string
}

// message is a broadcast staged for room filtering.
type message struct {
	room string
	data []byte
}

// Broker handles Server-Sent Events clients and broadcasting.
type Broker struct {
	clients    map[*subscriber]bool
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan message
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewBroker creates a new SSE broker
func NewBroker(log zerolog.Logger) *Broker {
	return &Broker{
		clients:    make(map[*subscriber]bool),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan message, 1000),
		log:        log.With().Str("component", "sse").Logger(),
	}
}

// Run starts the broker loop. Returns when the context ends.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				close(client.ch)
				delete(b.clients, client)
			}
			b.mu.Unlock()
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			total := len(b.clients)
			b.mu.Unlock()
			b.log.Debug().Str("room", client.room).Int("total", total).Msg("SSE client connected")

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.ch)
			}
			total := len(b.clients)
			b.mu.Unlock()
			b.log.Debug().Int("total", total).Msg("SSE client disconnected")

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				if client.room != "" && client.room != msg.room {
					continue
				}
				select {
				case client.ch <- msg.data:
				default:
					// Skip if client buffer is full to prevent blocking
				}
			}
			b.mu.RUnlock()
		}
	}
}

// ServeHTTP handles the SSE endpoint. ?room= restricts the stream.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := &subscriber{
		ch:   make(chan []byte, 10),
		room: r.URL.Query().Get("room"),
	}
	b.register <- client

	notify := r.Context().Done()

	for {
		select {
		case <-notify:
			b.unregister <- client
			return
		case msg, open := <-client.ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Broadcast sends an event to all clients watching the room.
func (b *Broker) Broadcast(event, room string, payload interface{}) {
	data := map[string]interface{}{
		"event":   event,
		"room":    room,
		"payload": payload,
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		b.log.Error().Err(err).Str("event", event).Msg("broadcast marshal failed")
		return
	}

	select {
	case b.broadcast <- message{room: room, data: jsonBytes}:
	default:
		// Drop if broadcast buffer full
	}
}
