// Package websocket owns the upstream realtime transport: dialing,
// subscription handshake, keep-alive, health monitoring, and reconnection
// with backoff. Layers above only see decoded events and classified
// connection states.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roomsync/models"
)

// Client represents one WebSocket connection to the platform
type Client struct {
	url     string
	conn    *websocket.Conn
	header  http.Header
	writeMu sync.Mutex
	// Cancel function for the ping goroutine
	pingCancel context.CancelFunc
	log        zerolog.Logger
}

// subscribeRequest is the handshake sent after dialing: which rooms this
// connection wants events for.
type subscribeRequest struct {
	Action string   `json:"action"`
	Rooms  []string `json:"rooms"`
}

// pingRequest is the keep-alive frame.
type pingRequest struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// NewClient creates a new WebSocket client
func NewClient(url string, authToken string, log zerolog.Logger) *Client {
	header := make(http.Header)
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}

	return &Client{
		url:    url,
		header: header,
		log:    log,
	}
}

// Connect establishes the WebSocket connection
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.conn = conn
	c.log.Info().Str("url", c.url).Msg("✅ WebSocket connected")
	return nil
}

// SubscribeToRooms sends the room subscription handshake.
func (c *Client) SubscribeToRooms(rooms []string) error {
	req := subscribeRequest{Action: "subscribe", Rooms: rooms}
	if err := c.writeJSON(req); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	c.log.Info().Strs("rooms", rooms).Msg("📡 Subscribed to rooms")
	return nil
}

// StartPing starts periodic ping to keep the connection alive.
func (c *Client) StartPing(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.pingCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ping := pingRequest{Action: "ping", Timestamp: time.Now().Unix()}
				if err := c.writeJSON(ping); err != nil {
					c.log.Warn().Err(err).Msg("Failed to send ping")
					return
				}
			}
		}
	}()
}

// writeJSON sends a JSON message thread-safely.
func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.WriteJSON(v)
}

// ReadMessage reads and decodes one tagged event from the socket.
func (c *Client) ReadMessage() (*models.Event, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("connection is nil")
	}

	var event models.Event
	if err := c.conn.ReadJSON(&event); err != nil {
		return nil, err
	}

	if event.Type == "" {
		return nil, fmt.Errorf("message without type tag")
	}
	return &event, nil
}

// Close closes the WebSocket connection
func (c *Client) Close() error {
	// Cancel ping goroutine if it's running
	if c.pingCancel != nil {
		c.pingCancel()
	}

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
