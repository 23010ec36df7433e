package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsync/bridge"
	"roomsync/models"
	"roomsync/platform"
	"roomsync/store"
	"roomsync/websocket"
)

// stubAPI serves canned snapshots to the room store.
type stubAPI struct {
	alerts []models.Alert
	total  int
}

func (s *stubAPI) FetchAlerts(ctx context.Context, room, filter string, page, perPage int) ([]models.Alert, int, error) {
	return s.alerts, s.total, nil
}

func (s *stubAPI) FetchTradePlan(ctx context.Context, room string) ([]models.TradePlanEntry, error) {
	return nil, nil
}

func (s *stubAPI) FetchStats(ctx context.Context, room string) (*models.RoomStats, error) {
	return &models.RoomStats{WinRate: 65}, nil
}

func (s *stubAPI) FetchAllTrades(ctx context.Context, room string, perPage int) ([]models.Trade, error) {
	return nil, nil
}

func (s *stubAPI) FetchWeeklyVideo(ctx context.Context, room string) (*models.WeeklyVideo, error) {
	return nil, nil
}

func (s *stubAPI) CheckAdminStatus(ctx context.Context) (bool, error) {
	return false, nil
}

type stubConn struct{}

func (stubConn) Subscribe(handler func(models.Event)) func() { return func() {} }
func (stubConn) State() websocket.State                      { return websocket.StateConnected }

type nopNotifier struct{}

func (nopNotifier) Toast(room, level, title, message string) {}
func (nopNotifier) Notify(room string, alert models.Alert)   {}

// testRegistry implements RoomRegistry over real stores and bridges.
type testRegistry struct {
	slugs   []string
	stores  map[string]*store.RoomStore
	bridges map[string]*bridge.Bridge
}

func (r *testRegistry) Rooms() []string { return r.slugs }

func (r *testRegistry) Store(slug string) (*store.RoomStore, bool) {
	st, ok := r.stores[slug]
	return st, ok
}

func (r *testRegistry) Bridge(slug string) (*bridge.Bridge, bool) {
	b, ok := r.bridges[slug]
	return b, ok
}

func newTestServer(t *testing.T, upstream http.Handler) (*Server, *testRegistry) {
	t.Helper()

	st := store.NewRoomStore("explosive-swings", &stubAPI{total: 1, alerts: []models.Alert{
		{ID: 1, RoomSlug: "explosive-swings", AlertType: models.AlertEntry, Ticker: "NVDA"},
	}}, 10, zerolog.Nop())
	st.Initialize(context.Background())

	br := bridge.New("explosive-swings", stubConn{}, st, nopNotifier{}, nil, bridge.Options{}, zerolog.Nop())

	registry := &testRegistry{
		slugs:   []string{"explosive-swings"},
		stores:  map[string]*store.RoomStore{"explosive-swings": st},
		bridges: map[string]*bridge.Bridge{"explosive-swings": br},
	}

	var pc *platform.Client
	if upstream != nil {
		up := httptest.NewServer(upstream)
		t.Cleanup(up.Close)
		pc = platform.NewClient(up.URL, "", nil, zerolog.Nop(), platform.WithRetry(1, time.Millisecond))
	} else {
		pc = platform.NewClient("http://127.0.0.1:0", "", nil, zerolog.Nop(), platform.WithRetry(1, time.Millisecond))
	}

	srv := NewServer("0", registry, pc, http.NotFoundHandler(), zerolog.Nop())
	return srv, registry
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var env response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)
}

func TestRoomsListing(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(srv, http.MethodGet, "/api/rooms", "")

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var rooms []roomSummary
	require.NoError(t, json.Unmarshal(raw, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "explosive-swings", rooms[0].Slug)
	assert.Equal(t, "disconnected", rooms[0].Status)
}

func TestRoomViewUnknownRoom(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(srv, http.MethodGet, "/api/rooms/nope/view", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "nope")
}

func TestRoomViewMergesStoreAndBridge(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(srv, http.MethodGet, "/api/rooms/explosive-swings/view", "")

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)

	var view struct {
		Room             string         `json:"room"`
		Alerts           []models.Alert `json:"alerts"`
		ConnectionStatus string         `json:"connection_status"`
		FreshAlertIDs    []int64        `json:"fresh_alert_ids"`
		Stats            struct {
			WinRate float64 `json:"win_rate"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(raw, &view))

	assert.Equal(t, "explosive-swings", view.Room)
	require.Len(t, view.Alerts, 1)
	assert.Equal(t, "NVDA", view.Alerts[0].Ticker)
	assert.Equal(t, 65.0, view.Stats.WinRate)
	assert.NotNil(t, view.FreshAlertIDs)
}

func TestAlertsPaginationQuery(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/rooms/explosive-swings/alerts?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/api/rooms/explosive-swings/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Total)
	assert.Equal(t, 1, *env.Total)
}

func TestCreateAlertProxiesUpstream(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var alert models.Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		alert.ID = 42
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": alert})
	})

	srv, registry := newTestServer(t, upstream)
	rec := doRequest(srv, http.MethodPost, "/api/rooms/explosive-swings/alerts",
		`{"ticker":"TSLA","alert_type":"ENTRY","room_slug":"explosive-swings"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	st, _ := registry.Store("explosive-swings")
	alerts := st.Alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, int64(42), alerts[0].ID, "created alert lands at the head")
}

func TestCreateAlertUpstreamFailure(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	srv, _ := newTestServer(t, upstream)
	rec := doRequest(srv, http.MethodPost, "/api/rooms/explosive-swings/alerts", `{"ticker":"TSLA"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestMarkRead(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(srv, http.MethodPost, "/api/rooms/explosive-swings/read", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)
}

func TestUpsertTradePlanProxiesUpstream(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method, "entries without an ID are created")
		var entry models.TradePlanEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entry))
		entry.ID = 11
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": entry})
	})

	srv, _ := newTestServer(t, upstream)
	rec := doRequest(srv, http.MethodPut, "/api/rooms/explosive-swings/trade-plan",
		`{"ticker":"SPY","bias":"BULLISH","sort_order":1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestHistoryDisabledWithoutJournal(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(srv, http.MethodGet, "/api/rooms/explosive-swings/history", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(srv, http.MethodOptions, "/api/rooms", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
