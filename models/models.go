// Package models defines the domain types exchanged with the trading
// platform API and the realtime event stream. All types mirror the wire
// shapes (snake_case JSON) used by the platform.
package models

import (
	"encoding/json"
	"time"
)

// AlertType classifies a published trade alert.
type AlertType string

const (
	AlertEntry  AlertType = "ENTRY"
	AlertExit   AlertType = "EXIT"
	AlertUpdate AlertType = "UPDATE"
)

// Bias is the directional stance of a trade plan entry.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// TradeStatus is the lifecycle state of a tracked trade.
// Closing is one-way: there is no reopen path.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// TradeResult is the realized outcome of a closed trade.
type TradeResult string

const (
	ResultWin  TradeResult = "WIN"
	ResultLoss TradeResult = "LOSS"
)

// Alert is a published trade notification scoped to one room.
// Identity is the server-assigned ID; the in-memory alert list holds at
// most one entry per ID.
type Alert struct {
	ID          int64     `json:"id"`
	RoomSlug    string    `json:"room_slug"`
	AlertType   AlertType `json:"alert_type"`
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Notes       string    `json:"notes,omitempty"`
	TOSString   string    `json:"tos_string,omitempty"`
	IsNew       bool      `json:"is_new"`
	IsPinned    bool      `json:"is_pinned"`
	IsPublished bool      `json:"is_published"`
	PublishedAt time.Time `json:"published_at"`
}

// TradePlanEntry is a planned setup that has not become a trade yet.
// Display order is governed by SortOrder; the server owns the canonical
// ordering.
type TradePlanEntry struct {
	ID            int64   `json:"id"`
	RoomSlug      string  `json:"room_slug"`
	Ticker        string  `json:"ticker"`
	Bias          Bias    `json:"bias"`
	Entry         float64 `json:"entry"`
	Target1       float64 `json:"target1"`
	Target2       float64 `json:"target2"`
	Target3       float64 `json:"target3"`
	Runner        float64 `json:"runner"`
	Stop          float64 `json:"stop"`
	OptionsStrike string  `json:"options_strike,omitempty"`
	OptionsExp    string  `json:"options_exp,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	SortOrder     int     `json:"sort_order"`
}

// Trade is an actual tracked position. P&L fields are server-authoritative
// and only present once the trade is closed.
type Trade struct {
	ID         int64       `json:"id"`
	RoomSlug   string      `json:"room_slug"`
	Ticker     string      `json:"ticker"`
	Direction  string      `json:"direction"` // long | short
	TradeType  string      `json:"trade_type"`
	EntryPrice float64     `json:"entry_price"`
	EntryDate  time.Time   `json:"entry_date"`
	ExitPrice  *float64    `json:"exit_price,omitempty"`
	ExitDate   *time.Time  `json:"exit_date,omitempty"`
	Status     TradeStatus `json:"status"`
	Result     TradeResult `json:"result,omitempty"`
	PnL        *float64    `json:"pnl,omitempty"`
	PnLPercent *float64    `json:"pnl_percent,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

// WeeklyVideo is the weekly room video. At most one video per room has
// IsCurrent set; publishing a new one archives the previous current video
// server-side.
type WeeklyVideo struct {
	ID            int64     `json:"id"`
	RoomSlug      string    `json:"room_slug"`
	WeekOf        string    `json:"week_of"`
	WeekTitle     string    `json:"week_title"`
	VideoTitle    string    `json:"video_title"`
	VideoURL      string    `json:"video_url"`
	VideoPlatform string    `json:"video_platform"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	Duration      string    `json:"duration,omitempty"`
	Description   string    `json:"description,omitempty"`
	IsCurrent     bool      `json:"is_current"`
	PublishedAt   time.Time `json:"published_at"`
}

// RoomStats is a derived, read-only performance snapshot. It has no
// identity and is replaced wholesale on every fetch or StatsUpdated push.
type RoomStats struct {
	WinRate        float64 `json:"win_rate"`
	ActiveTrades   int     `json:"active_trades"`
	ClosedThisWeek int     `json:"closed_this_week"`
	TotalTrades    int     `json:"total_trades"`
	WeeklyProfit   float64 `json:"weekly_profit"`
}

// Envelope is the response wrapper shared by every platform endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
	Total   *int            `json:"total,omitempty"`
}
