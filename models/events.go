package models

import (
	"encoding/json"
	"fmt"
)

// EventType tags a realtime message pushed by the platform WebSocket.
type EventType string

const (
	EventAlertCreated     EventType = "AlertCreated"
	EventAlertUpdated     EventType = "AlertUpdated"
	EventAlertDeleted     EventType = "AlertDeleted"
	EventTradeCreated     EventType = "TradeCreated"
	EventTradeClosed      EventType = "TradeClosed"
	EventTradeUpdated     EventType = "TradeUpdated"
	EventTradeInvalidated EventType = "TradeInvalidated"
	EventStatsUpdated     EventType = "StatsUpdated"
	EventTradePlanCreated EventType = "TradePlanCreated"
	EventTradePlanUpdated EventType = "TradePlanUpdated"
	EventTradePlanDeleted EventType = "TradePlanDeleted"
	EventError            EventType = "Error"
)

// Event is the tagged-union message shape on the realtime socket:
// { "type": <tag>, "payload": <tag-specific object> }.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomScoped is the minimal payload shape shared by all room-scoped
// messages. Used to peek at the room before full decoding.
type roomScoped struct {
	RoomSlug string `json:"room_slug"`
}

// Room extracts the room_slug carried by the payload. Returns an empty
// string when the payload has none (e.g. malformed or global messages).
func (e *Event) Room() string {
	var rs roomScoped
	if err := json.Unmarshal(e.Payload, &rs); err != nil {
		return ""
	}
	return rs.RoomSlug
}

// AlertDeletedEvent is the payload of AlertDeleted: only identity fields.
type AlertDeletedEvent struct {
	ID       int64  `json:"id"`
	RoomSlug string `json:"room_slug"`
}

// StatsEvent is the payload of StatsUpdated.
type StatsEvent struct {
	RoomSlug string    `json:"room_slug"`
	Stats    RoomStats `json:"stats"`
}

// TradePlanEvent is the payload of the three TradePlan* tags. Only the
// room matters: all trade plan changes funnel through a full re-fetch.
type TradePlanEvent struct {
	ID       int64  `json:"id"`
	RoomSlug string `json:"room_slug"`
}

// ErrorEvent is the payload of Error messages. The connection stays open.
type ErrorEvent struct {
	RoomSlug string `json:"room_slug"`
	Message  string `json:"message"`
}

// DecodeAlert decodes the payload of AlertCreated/AlertUpdated.
func (e *Event) DecodeAlert() (Alert, error) {
	var a Alert
	if err := json.Unmarshal(e.Payload, &a); err != nil {
		return Alert{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return a, nil
}

// DecodeAlertDeleted decodes the payload of AlertDeleted.
func (e *Event) DecodeAlertDeleted() (AlertDeletedEvent, error) {
	var d AlertDeletedEvent
	if err := json.Unmarshal(e.Payload, &d); err != nil {
		return AlertDeletedEvent{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return d, nil
}

// DecodeTrade decodes the payload of the four Trade* tags.
func (e *Event) DecodeTrade() (Trade, error) {
	var t Trade
	if err := json.Unmarshal(e.Payload, &t); err != nil {
		return Trade{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return t, nil
}

// DecodeStats decodes the payload of StatsUpdated.
func (e *Event) DecodeStats() (StatsEvent, error) {
	var s StatsEvent
	if err := json.Unmarshal(e.Payload, &s); err != nil {
		return StatsEvent{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return s, nil
}

// DecodeError decodes the payload of Error messages.
func (e *Event) DecodeError() (ErrorEvent, error) {
	var ev ErrorEvent
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return ErrorEvent{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return ev, nil
}
