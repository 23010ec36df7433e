package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"roomsync/metrics"
	"roomsync/models"
)

// CachePolicies holds the per-resource snapshot TTLs. Zero TTL disables
// caching for that resource.
type CachePolicies struct {
	Alerts      time.Duration
	TradePlan   time.Duration
	Stats       time.Duration
	Trades      time.Duration
	WeeklyVideo time.Duration
}

// SetCachePolicies configures snapshot cache TTLs. Without this call every
// fetch goes to the network.
func (c *Client) SetCachePolicies(p CachePolicies) {
	c.policies = p
}

func (c *Client) policyFor(key string, ttl time.Duration, tag string) *cachePolicy {
	if ttl <= 0 || c.cache == nil {
		return nil
	}
	return &cachePolicy{key: key, ttl: ttl, tag: tag}
}

func alertsTag(room string) string { return "alerts:" + room }

// FetchAlerts returns one page of published alerts for the room, optionally
// filtered by alert type, plus the server-side total for pagination.
func (c *Client) FetchAlerts(ctx context.Context, room, filter string, page, perPage int) ([]models.Alert, int, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	if filter != "" && filter != "all" {
		query.Set("type", filter)
	}

	key := fmt.Sprintf("snapshot:alerts:%s:%s:%d:%d", room, filter, page, perPage)
	policy := c.policyFor(key, c.policies.Alerts, alertsTag(room))

	var alerts []models.Alert
	env, err := c.fetch(ctx, "alerts", "/api/alerts/"+room, query, policy, &alerts)
	if err != nil {
		return nil, 0, err
	}

	total := len(alerts)
	if env.Total != nil {
		total = *env.Total
	}
	return alerts, total, nil
}

// FetchTradePlan returns the room's trade plan entries sorted by SortOrder.
// The client re-derives the sorted view; server order is never mutated here.
func (c *Client) FetchTradePlan(ctx context.Context, room string) ([]models.TradePlanEntry, error) {
	key := "snapshot:trade-plan:" + room
	policy := c.policyFor(key, c.policies.TradePlan, "trade-plan:"+room)

	var entries []models.TradePlanEntry
	if _, err := c.fetch(ctx, "trade_plan", "/api/trade-plans/"+room, nil, policy, &entries); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SortOrder < entries[j].SortOrder
	})
	return entries, nil
}

// FetchStats returns the room performance snapshot.
func (c *Client) FetchStats(ctx context.Context, room string) (*models.RoomStats, error) {
	key := "snapshot:stats:" + room
	policy := c.policyFor(key, c.policies.Stats, "stats:"+room)

	var stats models.RoomStats
	if _, err := c.fetch(ctx, "stats", "/api/stats/"+room, nil, policy, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// FetchAllTrades returns the room's tracked trades, open and closed.
func (c *Client) FetchAllTrades(ctx context.Context, room string, perPage int) ([]models.Trade, error) {
	query := url.Values{}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}

	key := fmt.Sprintf("snapshot:trades:%s:%d", room, perPage)
	policy := c.policyFor(key, c.policies.Trades, "trades:"+room)

	var trades []models.Trade
	if _, err := c.fetch(ctx, "trades", "/api/trades/"+room, query, policy, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// FetchWeeklyVideo returns the room's current weekly video, or nil when the
// room has none. Absence (404) is not an error.
func (c *Client) FetchWeeklyVideo(ctx context.Context, room string) (*models.WeeklyVideo, error) {
	key := "snapshot:weekly-video:" + room
	policy := c.policyFor(key, c.policies.WeeklyVideo, "weekly-video:"+room)

	var video models.WeeklyVideo
	_, err := c.fetch(ctx, "weekly_video", "/api/weekly-video/"+room, nil, policy, &video)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// adminStatus is the /api/auth/me payload subset this client cares about.
type adminStatus struct {
	IsAdmin bool `json:"is_admin"`
}

// CheckAdminStatus reports whether the configured token belongs to an admin.
func (c *Client) CheckAdminStatus(ctx context.Context) (bool, error) {
	var status adminStatus
	if _, err := c.fetch(ctx, "auth", "/api/auth/me", nil, nil, &status); err != nil {
		return false, err
	}
	return status.IsAdmin, nil
}

// CreateAlert publishes a new alert and invalidates the room's alert cache.
func (c *Client) CreateAlert(ctx context.Context, room string, alert models.Alert) (*models.Alert, error) {
	env, err := c.do(ctx, "POST", "/api/alerts/"+room, nil, alert)
	if err != nil {
		return nil, err
	}
	var created models.Alert
	if err := json.Unmarshal(env.Data, &created); err != nil {
		return nil, fmt.Errorf("decode created alert: %w", err)
	}
	c.invalidate(ctx, alertsTag(room))
	return &created, nil
}

// UpdateAlert patches an existing alert and invalidates the room's alert cache.
func (c *Client) UpdateAlert(ctx context.Context, room string, id int64, alert models.Alert) (*models.Alert, error) {
	env, err := c.do(ctx, "PUT", fmt.Sprintf("/api/alerts/%s/%d", room, id), nil, alert)
	if err != nil {
		return nil, err
	}
	var updated models.Alert
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		return nil, fmt.Errorf("decode updated alert: %w", err)
	}
	c.invalidate(ctx, alertsTag(room))
	return &updated, nil
}

// DeleteAlert removes an alert and invalidates the room's alert cache.
func (c *Client) DeleteAlert(ctx context.Context, room string, id int64) error {
	if _, err := c.do(ctx, "DELETE", fmt.Sprintf("/api/alerts/%s/%d", room, id), nil, nil); err != nil {
		return err
	}
	c.invalidate(ctx, alertsTag(room))
	return nil
}

// UpsertTradePlanEntry creates or replaces a trade plan entry. Entries with a
// server-assigned ID are updated in place; ID zero creates.
func (c *Client) UpsertTradePlanEntry(ctx context.Context, room string, entry models.TradePlanEntry) (*models.TradePlanEntry, error) {
	method, path := "POST", "/api/trade-plans/"+room
	if entry.ID > 0 {
		method, path = "PUT", fmt.Sprintf("/api/trade-plans/%s/%d", room, entry.ID)
	}

	env, err := c.do(ctx, method, path, nil, entry)
	if err != nil {
		return nil, err
	}
	var saved models.TradePlanEntry
	if err := json.Unmarshal(env.Data, &saved); err != nil {
		return nil, fmt.Errorf("decode trade plan entry: %w", err)
	}
	c.invalidate(ctx, "trade-plan:"+room)
	return &saved, nil
}

// closeTradeRequest is the body for closing a tracked trade. P&L and result
// are computed server-side from the exit price.
type closeTradeRequest struct {
	ExitPrice float64 `json:"exit_price"`
}

// CloseTrade closes an open trade at the given exit price. Closing is
// one-way; the server rejects a close on an already-closed trade.
func (c *Client) CloseTrade(ctx context.Context, room string, id int64, exitPrice float64) (*models.Trade, error) {
	env, err := c.do(ctx, "POST", fmt.Sprintf("/api/trades/%s/%d/close", room, id), nil, closeTradeRequest{ExitPrice: exitPrice})
	if err != nil {
		return nil, err
	}
	var closed models.Trade
	if err := json.Unmarshal(env.Data, &closed); err != nil {
		return nil, fmt.Errorf("decode closed trade: %w", err)
	}
	c.invalidate(ctx, "trades:"+room)
	c.invalidate(ctx, "stats:"+room)
	return &closed, nil
}

// PublishWeeklyVideo publishes a new weekly video. The server archives the
// previous current video; this client only invalidates its snapshot.
func (c *Client) PublishWeeklyVideo(ctx context.Context, room string, video models.WeeklyVideo) (*models.WeeklyVideo, error) {
	env, err := c.do(ctx, "POST", "/api/weekly-video/"+room, nil, video)
	if err != nil {
		return nil, err
	}
	var published models.WeeklyVideo
	if err := json.Unmarshal(env.Data, &published); err != nil {
		return nil, fmt.Errorf("decode published video: %w", err)
	}
	c.invalidate(ctx, "weekly-video:"+room)
	return &published, nil
}

// fetch runs one instrumented GET and unmarshals the envelope data into out.
func (c *Client) fetch(ctx context.Context, resource, path string, query url.Values, policy *cachePolicy, out interface{}) (*cachedEnvelope, error) {
	start := time.Now()
	env, err := c.getEnvelope(ctx, path, query, policy)
	metrics.FetchDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrNotFound) {
			outcome = "not_found"
		}
		metrics.FetchTotal.WithLabelValues(resource, outcome).Inc()
		return nil, err
	}
	metrics.FetchTotal.WithLabelValues(resource, "success").Inc()

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", resource, err)
		}
	}
	return env, nil
}
