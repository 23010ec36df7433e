// Package api serves the dashboard-facing HTTP surface: room view snapshots,
// the narrow alert mutation endpoints, the SSE event stream, health and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"roomsync/bridge"
	"roomsync/journal"
	"roomsync/models"
	"roomsync/platform"
	"roomsync/store"
)

// RoomRegistry exposes the per-room sync machinery to handlers.
// Satisfied by *app.App.
type RoomRegistry interface {
	Rooms() []string
	Store(slug string) (*store.RoomStore, bool)
	Bridge(slug string) (*bridge.Bridge, bool)
}

// Server is the dashboard HTTP server.
type Server struct {
	registry RoomRegistry
	platform *platform.Client
	events   http.Handler
	journal  *journal.Journal
	log      zerolog.Logger
	srv      *http.Server
}

// SetJournal enables the alert history endpoint. Optional; without it the
// endpoint reports the journal as disabled.
func (s *Server) SetJournal(j *journal.Journal) {
	s.journal = j
}

// NewServer wires the handlers over the registry, the upstream platform
// client (alert mutations) and the SSE event stream.
func NewServer(port string, registry RoomRegistry, pc *platform.Client, events http.Handler, log zerolog.Logger) *Server {
	s := &Server{
		registry: registry,
		platform: pc,
		events:   events,
		log:      log.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /api/events", events)
	mux.HandleFunc("GET /api/rooms", s.handleRooms)
	mux.HandleFunc("GET /api/rooms/{slug}/view", s.handleRoomView)
	mux.HandleFunc("GET /api/rooms/{slug}/alerts", s.handleAlerts)
	mux.HandleFunc("POST /api/rooms/{slug}/alerts", s.handleCreateAlert)
	mux.HandleFunc("PUT /api/rooms/{slug}/alerts/{id}", s.handleUpdateAlert)
	mux.HandleFunc("DELETE /api/rooms/{slug}/alerts/{id}", s.handleDeleteAlert)
	mux.HandleFunc("PUT /api/rooms/{slug}/trade-plan", s.handleUpsertTradePlan)
	mux.HandleFunc("POST /api/rooms/{slug}/trades/{id}/close", s.handleCloseTrade)
	mux.HandleFunc("POST /api/rooms/{slug}/weekly-video", s.handlePublishVideo)
	mux.HandleFunc("POST /api/rooms/{slug}/read", s.handleMarkRead)
	mux.HandleFunc("GET /api/rooms/{slug}/history", s.handleAlertHistory)

	s.srv = &http.Server{
		Addr:         ":" + port,
		Handler:      corsMiddleware(loggingMiddleware(s.log, mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("🌐 Dashboard API listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// roomSummary is one entry of the GET /api/rooms listing.
type roomSummary struct {
	Slug        string `json:"slug"`
	Status      string `json:"status"`
	UnreadCount int    `json:"unread_count"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.registry.Rooms()
	summaries := make([]roomSummary, 0, len(rooms))
	for _, slug := range rooms {
		summary := roomSummary{Slug: slug, Status: "disconnected"}
		if b, ok := s.registry.Bridge(slug); ok {
			summary.Status = string(b.Status())
			summary.UnreadCount = b.UnreadCount()
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, http.StatusOK, summaries)
}

// roomViewResponse merges the store snapshot with the bridge's live state.
type roomViewResponse struct {
	store.RoomView
	ConnectionStatus string  `json:"connection_status"`
	UnreadCount      int     `json:"unread_count"`
	FreshAlertIDs    []int64 `json:"fresh_alert_ids"`
}

func (s *Server) handleRoomView(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	st, ok := s.registry.Store(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	view := roomViewResponse{
		RoomView:         st.Snapshot(),
		ConnectionStatus: "disconnected",
		FreshAlertIDs:    []int64{},
	}
	if b, ok := s.registry.Bridge(slug); ok {
		view.ConnectionStatus = string(b.Status())
		view.UnreadCount = b.UnreadCount()
		view.FreshAlertIDs = b.FreshIDs()
	}
	writeJSON(w, http.StatusOK, view)
}

// handleAlerts applies filter/page query params to the room store and
// returns the resulting alert window.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	st, ok := s.registry.Store(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	if filter := r.URL.Query().Get("type"); filter != "" {
		if err := st.SetFilter(r.Context(), filter); err != nil {
			writeError(w, http.StatusBadGateway, "alert fetch failed: "+err.Error())
			return
		}
	}
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page: "+pageStr)
			return
		}
		if err := st.GoToPage(r.Context(), page); err != nil {
			writeError(w, http.StatusBadGateway, "alert fetch failed: "+err.Error())
			return
		}
	}

	_, _, total := st.ShowingRange()
	writeJSONTotal(w, http.StatusOK, st.FilteredAlerts(), total)
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	st, ok := s.registry.Store(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert body: "+err.Error())
		return
	}

	created, err := s.platform.CreateAlert(r.Context(), slug, alert)
	if err != nil {
		writeError(w, http.StatusBadGateway, "alert create failed: "+err.Error())
		return
	}

	// The realtime event will also arrive; PrependAlert dedupes by ID.
	st.PrependAlert(*created)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	st, ok := s.registry.Store(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert body: "+err.Error())
		return
	}

	updated, err := s.platform.UpdateAlert(r.Context(), slug, id, alert)
	if err != nil {
		writeError(w, http.StatusBadGateway, "alert update failed: "+err.Error())
		return
	}

	st.UpdateAlert(*updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	st, ok := s.registry.Store(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	if err := s.platform.DeleteAlert(r.Context(), slug, id); err != nil {
		writeError(w, http.StatusBadGateway, "alert delete failed: "+err.Error())
		return
	}

	st.RemoveAlert(id)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) handleUpsertTradePlan(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	st, ok := s.registry.Store(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	var entry models.TradePlanEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade plan body: "+err.Error())
		return
	}

	saved, err := s.platform.UpsertTradePlanEntry(r.Context(), slug, entry)
	if err != nil {
		writeError(w, http.StatusBadGateway, "trade plan save failed: "+err.Error())
		return
	}

	if err := st.FetchTradePlan(r.Context()); err != nil {
		s.log.Warn().Err(err).Str("room", slug).Msg("trade plan refresh failed after save")
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	st, ok := s.registry.Store(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	var body struct {
		ExitPrice float64 `json:"exit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid close body: "+err.Error())
		return
	}

	closed, err := s.platform.CloseTrade(r.Context(), slug, id, body.ExitPrice)
	if err != nil {
		writeError(w, http.StatusBadGateway, "trade close failed: "+err.Error())
		return
	}

	if err := st.FetchAllTrades(r.Context()); err != nil {
		s.log.Warn().Err(err).Str("room", slug).Msg("trades refresh failed after close")
	}
	if err := st.FetchStats(r.Context()); err != nil {
		s.log.Warn().Err(err).Str("room", slug).Msg("stats refresh failed after close")
	}
	writeJSON(w, http.StatusOK, closed)
}

func (s *Server) handlePublishVideo(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	st, ok := s.registry.Store(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	var video models.WeeklyVideo
	if err := json.NewDecoder(r.Body).Decode(&video); err != nil {
		writeError(w, http.StatusBadRequest, "invalid video body: "+err.Error())
		return
	}

	published, err := s.platform.PublishWeeklyVideo(r.Context(), slug, video)
	if err != nil {
		writeError(w, http.StatusBadGateway, "video publish failed: "+err.Error())
		return
	}

	if err := st.FetchWeeklyVideo(r.Context()); err != nil {
		s.log.Warn().Err(err).Str("room", slug).Msg("weekly video refresh failed after publish")
	}
	writeJSON(w, http.StatusCreated, published)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	b, ok := s.registry.Bridge(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}

	b.MarkAllRead()
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": b.UnreadCount()})
}

// handleAlertHistory serves the journaled alert event history for one room.
func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if _, ok := s.registry.Store(slug); !ok {
		writeError(w, http.StatusNotFound, "unknown room: "+slug)
		return
	}
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "event journal is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		limit = n
	}

	records, err := s.journal.RecentAlerts(slug, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history query failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}
