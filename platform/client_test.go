package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsync/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "test-token", nil, zerolog.Nop(), WithRetry(3, time.Millisecond))
	return client, srv
}

func envelope(t *testing.T, data interface{}, total *int) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(map[string]interface{}{
		"success": true,
		"data":    json.RawMessage(raw),
		"total":   total,
	})
	require.NoError(t, err)
	return out
}

func TestFetchAlertsDecodesEnvelope(t *testing.T) {
	total := 25
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/alerts/explosive-swings", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		assert.Equal(t, "ENTRY", r.URL.Query().Get("type"))
		w.Write(envelope(t, []models.Alert{{ID: 1, Ticker: "NVDA"}}, &total))
	}))

	alerts, gotTotal, err := client.FetchAlerts(context.Background(), "explosive-swings", "ENTRY", 2, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "NVDA", alerts[0].Ticker)
	assert.Equal(t, 25, gotTotal)
}

func TestFetchAlertsOmitsAllFilter(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("type"), `"all" must not be sent as a type filter`)
		w.Write(envelope(t, []models.Alert{}, nil))
	}))

	_, total, err := client.FetchAlerts(context.Background(), "explosive-swings", "all", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestFailedEnvelopeIsAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "room not accessible",
		})
	}))

	_, err := client.FetchStats(context.Background(), "explosive-swings")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "room not accessible", apiErr.Message)
}

func TestWeeklyVideoAbsenceIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	video, err := client.FetchWeeklyVideo(context.Background(), "explosive-swings")
	require.NoError(t, err)
	assert.Nil(t, video)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(envelope(t, models.RoomStats{WinRate: 70}, nil))
	}))

	stats, err := client.FetchStats(context.Background(), "explosive-swings")
	require.NoError(t, err)
	assert.Equal(t, 70.0, stats.WinRate)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.FetchStats(context.Background(), "explosive-swings")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are final")
}

func TestTradePlanSortedBySortOrder(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(t, []models.TradePlanEntry{
			{ID: 1, Ticker: "QQQ", SortOrder: 2},
			{ID: 2, Ticker: "SPY", SortOrder: 1},
		}, nil))
	}))

	entries, err := client.FetchTradePlan(context.Background(), "explosive-swings")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SPY", entries[0].Ticker)
	assert.Equal(t, "QQQ", entries[1].Ticker)
}

func TestCheckAdminStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/me", r.URL.Path)
		w.Write(envelope(t, map[string]interface{}{"id": 7, "is_admin": true}, nil))
	}))

	isAdmin, err := client.CheckAdminStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestCreateAlertPostsAndDecodes(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body models.Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body.ID = 99
		w.Write(envelope(t, body, nil))
	}))

	created, err := client.CreateAlert(context.Background(), "explosive-swings", models.Alert{Ticker: "NVDA", AlertType: models.AlertEntry})
	require.NoError(t, err)
	assert.Equal(t, int64(99), created.ID)
	assert.Equal(t, "NVDA", created.Ticker)
}

func TestCloseTrade(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/trades/explosive-swings/5/close", r.URL.Path)

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 152.5, body["exit_price"])

		pnl := 250.0
		w.Write(envelope(t, models.Trade{ID: 5, Status: models.TradeClosed, Result: models.ResultWin, PnL: &pnl}, nil))
	}))

	closed, err := client.CloseTrade(context.Background(), "explosive-swings", 5, 152.5)
	require.NoError(t, err)
	assert.Equal(t, models.TradeClosed, closed.Status)
	require.NotNil(t, closed.PnL)
	assert.Equal(t, 250.0, *closed.PnL)
}

func TestDeleteAlert(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/alerts/explosive-swings/7", r.URL.Path)
		w.Write(envelope(t, nil, nil))
	}))

	require.NoError(t, client.DeleteAlert(context.Background(), "explosive-swings", 7))
}
