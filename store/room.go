// Package store holds the per-room state store: the single source of truth
// for one room's domain data and session state. It merges REST snapshots
// with mutations pushed by the realtime bridge, and derives the view models
// the dashboard renders. The store is the sole owner of its entity slices;
// the bridge mutates only through the narrow mutation methods.
package store

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"roomsync/models"
)

// Resource names one independently fetched slice of room data.
type Resource string

const (
	ResourceAlerts      Resource = "alerts"
	ResourceTradePlan   Resource = "trade_plan"
	ResourceStats       Resource = "stats"
	ResourceTrades      Resource = "trades"
	ResourceWeeklyVideo Resource = "weekly_video"
	ResourceAdmin       Resource = "admin"
)

// RoomAPI is the data-access surface the store needs. Satisfied by
// *platform.Client.
type RoomAPI interface {
	FetchAlerts(ctx context.Context, room, filter string, page, perPage int) ([]models.Alert, int, error)
	FetchTradePlan(ctx context.Context, room string) ([]models.TradePlanEntry, error)
	FetchStats(ctx context.Context, room string) (*models.RoomStats, error)
	FetchAllTrades(ctx context.Context, room string, perPage int) ([]models.Trade, error)
	FetchWeeklyVideo(ctx context.Context, room string) (*models.WeeklyVideo, error)
	CheckAdminStatus(ctx context.Context) (bool, error)
}

// RoomStore owns one room's data. All methods are safe for concurrent use.
type RoomStore struct {
	room    string
	api     RoomAPI
	perPage int
	log     zerolog.Logger

	mu sync.RWMutex

	alerts      []models.Alert
	tradePlan   []models.TradePlanEntry
	stats       *models.RoomStats
	trades      []models.Trade
	weeklyVideo *models.WeeklyVideo
	isAdmin     bool

	selectedFilter string
	currentPage    int
	totalAlerts    int
	expandedNotes  map[int64]bool

	loading map[Resource]bool
	errs    map[Resource]string
	// Request-generation tokens: a response from a superseded request is
	// discarded instead of overwriting newer data.
	gen map[Resource]uint64

	initialized bool
}

// NewRoomStore creates a store for one room.
func NewRoomStore(room string, api RoomAPI, perPage int, log zerolog.Logger) *RoomStore {
	if perPage <= 0 {
		perPage = 10
	}
	return &RoomStore{
		room:           room,
		api:            api,
		perPage:        perPage,
		log:            log.With().Str("component", "store").Str("room", room).Logger(),
		selectedFilter: "all",
		currentPage:    1,
		expandedNotes:  make(map[int64]bool),
		loading:        make(map[Resource]bool),
		errs:           make(map[Resource]string),
		gen:            make(map[Resource]uint64),
	}
}

// Initialize fires all snapshot fetches concurrently. There is no ordering
// dependency between them; each failure is isolated into its own error
// field and never blocks the others. The store is always renderable
// afterwards, on whatever mix of live and fallback data is available.
func (s *RoomStore) Initialize(ctx context.Context) {
	var wg sync.WaitGroup

	fetches := []func(context.Context) error{
		s.FetchAlerts,
		s.FetchTradePlan,
		s.FetchStats,
		s.FetchAllTrades,
		s.FetchWeeklyVideo,
		s.FetchAdminStatus,
	}

	for _, fetch := range fetches {
		wg.Add(1)
		go func(f func(context.Context) error) {
			defer wg.Done()
			_ = f(ctx) // failures are recorded per-resource
		}(fetch)
	}

	wg.Wait()

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// beginFetch bumps the resource generation and marks it loading. Returns the
// generation the caller must present when applying the response.
func (s *RoomStore) beginFetch(res Resource) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[res]++
	s.loading[res] = true
	delete(s.errs, res)
	return s.gen[res]
}

// endFetch finishes a fetch: it checks the generation and, for a successful
// current response, runs apply inside the same critical section. Returns
// false when the response is stale (a newer request superseded it) and was
// discarded. Applying under the lock closes the window where a fetch that
// begins and completes between the check and the write would be clobbered
// by the older response.
func (s *RoomStore) endFetch(res Resource, gen uint64, err error, msg string, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen[res] != gen {
		return false
	}
	s.loading[res] = false
	if err != nil {
		s.errs[res] = msg
		return true
	}
	if apply != nil {
		apply()
	}
	return true
}

// FetchAlerts loads the current page of alerts with the current filter.
// Idempotent and safe to call repeatedly.
func (s *RoomStore) FetchAlerts(ctx context.Context) error {
	gen := s.beginFetch(ResourceAlerts)

	s.mu.RLock()
	filter, page := s.selectedFilter, s.currentPage
	s.mu.RUnlock()

	alerts, total, err := s.api.FetchAlerts(ctx, s.room, filter, page, s.perPage)
	if !s.endFetch(ResourceAlerts, gen, err, "Unable to load alerts", func() {
		s.alerts = alerts
		s.totalAlerts = total
	}) {
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("alerts fetch failed")
		return err
	}
	return nil
}

// FetchTradePlan loads the room's trade plan.
func (s *RoomStore) FetchTradePlan(ctx context.Context) error {
	gen := s.beginFetch(ResourceTradePlan)

	entries, err := s.api.FetchTradePlan(ctx, s.room)
	if !s.endFetch(ResourceTradePlan, gen, err, "Unable to load trade plan", func() {
		s.tradePlan = entries
	}) {
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("trade plan fetch failed")
		return err
	}
	return nil
}

// FetchStats loads the room performance snapshot.
func (s *RoomStore) FetchStats(ctx context.Context) error {
	gen := s.beginFetch(ResourceStats)

	stats, err := s.api.FetchStats(ctx, s.room)
	if !s.endFetch(ResourceStats, gen, err, "Unable to load stats", func() {
		s.stats = stats
	}) {
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("stats fetch failed")
		return err
	}
	return nil
}

// FetchAllTrades loads the tracked trades list.
func (s *RoomStore) FetchAllTrades(ctx context.Context) error {
	gen := s.beginFetch(ResourceTrades)

	trades, err := s.api.FetchAllTrades(ctx, s.room, 100)
	if !s.endFetch(ResourceTrades, gen, err, "Unable to load trades", func() {
		s.trades = trades
	}) {
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("trades fetch failed")
		return err
	}
	return nil
}

// FetchWeeklyVideo loads the current weekly video. A room with no current
// video yields nil data, not an error; the derived view falls back.
func (s *RoomStore) FetchWeeklyVideo(ctx context.Context) error {
	gen := s.beginFetch(ResourceWeeklyVideo)

	video, err := s.api.FetchWeeklyVideo(ctx, s.room)
	if !s.endFetch(ResourceWeeklyVideo, gen, err, "Unable to load weekly video", func() {
		s.weeklyVideo = video
	}) {
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("weekly video fetch failed")
		return err
	}
	return nil
}

// FetchAdminStatus checks whether the session token has admin rights.
func (s *RoomStore) FetchAdminStatus(ctx context.Context) error {
	gen := s.beginFetch(ResourceAdmin)

	isAdmin, err := s.api.CheckAdminStatus(ctx)
	if !s.endFetch(ResourceAdmin, gen, err, "Unable to verify admin status", func() {
		s.isAdmin = isAdmin
	}) {
		return nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("admin status check failed")
		return err
	}
	return nil
}

// SetFilter changes the alert type filter. No-op when unchanged; otherwise
// resets to page 1 and re-fetches (filtering is server-side).
func (s *RoomStore) SetFilter(ctx context.Context, filter string) error {
	if filter == "" {
		filter = "all"
	}

	s.mu.Lock()
	if filter == s.selectedFilter {
		s.mu.Unlock()
		return nil
	}
	s.selectedFilter = filter
	s.currentPage = 1
	s.mu.Unlock()

	return s.FetchAlerts(ctx)
}

// GoToPage moves pagination. No-op when out of [1, TotalPages] or unchanged.
func (s *RoomStore) GoToPage(ctx context.Context, page int) error {
	s.mu.Lock()
	if page < 1 || page > s.totalPagesLocked() || page == s.currentPage {
		s.mu.Unlock()
		return nil
	}
	s.currentPage = page
	s.mu.Unlock()

	return s.FetchAlerts(ctx)
}

// ToggleNotes flips the expand/collapse state for one alert's notes.
// Purely local; no network effect.
func (s *RoomStore) ToggleNotes(alertID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expandedNotes[alertID] {
		delete(s.expandedNotes, alertID)
	} else {
		s.expandedNotes[alertID] = true
	}
}

// PrependAlert inserts a pushed alert at the head of the list. Enforces
// at-most-one-per-id: a duplicate is a no-op and returns false. The
// pagination total is bumped so page-count derivations stay consistent
// without a re-fetch.
func (s *RoomStore) PrependAlert(alert models.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.alerts {
		if existing.ID == alert.ID {
			return false
		}
	}

	s.alerts = append([]models.Alert{alert}, s.alerts...)
	s.totalAlerts++
	return true
}

// UpdateAlert replaces the alert with the same ID. Unknown IDs are ignored.
func (s *RoomStore) UpdateAlert(alert models.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.alerts {
		if existing.ID == alert.ID {
			s.alerts[i] = alert
			return true
		}
	}
	return false
}

// RemoveAlert deletes the alert with the given ID.
func (s *RoomStore) RemoveAlert(alertID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.alerts {
		if existing.ID == alertID {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			if s.totalAlerts > 0 {
				s.totalAlerts--
			}
			delete(s.expandedNotes, alertID)
			return true
		}
	}
	return false
}

// SetStats replaces the stats snapshot wholesale.
func (s *RoomStore) SetStats(stats models.RoomStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = &stats
}

// Room returns the room slug this store serves.
func (s *RoomStore) Room() string { return s.room }

// Filter returns the active alert type filter.
func (s *RoomStore) Filter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedFilter
}

// CurrentPage returns the active page.
func (s *RoomStore) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

// IsAdmin reports the cached admin status.
func (s *RoomStore) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAdmin
}

// Alerts returns a copy of the loaded alert page.
func (s *RoomStore) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// FilteredAlerts applies the active filter client-side over the loaded
// alerts. Secondary to the server-side filter: it matters when pushed
// alerts of other types land in a filtered view.
func (s *RoomStore) FilteredAlerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selectedFilter == "" || s.selectedFilter == "all" {
		out := make([]models.Alert, len(s.alerts))
		copy(out, s.alerts)
		return out
	}

	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if string(a.AlertType) == s.selectedFilter {
			out = append(out, a)
		}
	}
	return out
}

// TradePlan returns the trade plan, or the static fallback when empty.
func (s *RoomStore) TradePlan() []models.TradePlanEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.tradePlan) == 0 {
		return fallbackTradePlan(s.room)
	}
	out := make([]models.TradePlanEntry, len(s.tradePlan))
	copy(out, s.tradePlan)
	return out
}

// Stats returns the performance snapshot, or the static fallback.
func (s *RoomStore) Stats() models.RoomStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stats == nil {
		return fallbackStats()
	}
	return *s.stats
}

// ActivePositions returns the open trades.
func (s *RoomStore) ActivePositions() []models.Trade {
	return s.tradesByStatus(models.TradeOpen)
}

// ClosedTrades returns the closed trades.
func (s *RoomStore) ClosedTrades() []models.Trade {
	return s.tradesByStatus(models.TradeClosed)
}

func (s *RoomStore) tradesByStatus(status models.TradeStatus) []models.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// WeeklyContent returns the current weekly video, or the static fallback
// when the room has none.
func (s *RoomStore) WeeklyContent() models.WeeklyVideo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.weeklyVideo == nil {
		return fallbackWeeklyVideo(s.room)
	}
	return *s.weeklyVideo
}

// TotalPages derives the page count from the server total. Never below 1.
func (s *RoomStore) TotalPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalPagesLocked()
}

func (s *RoomStore) totalPagesLocked() int {
	pages := int(math.Ceil(float64(s.totalAlerts) / float64(s.perPage)))
	if pages < 1 {
		pages = 1
	}
	return pages
}

// ShowingRange returns the 1-based inclusive window labels for the current
// page ("showing X to Y of N").
func (s *RoomStore) ShowingRange() (from, to, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total = s.totalAlerts
	if total == 0 {
		return 0, 0, 0
	}
	from = (s.currentPage-1)*s.perPage + 1
	to = from + len(s.alerts) - 1
	if to > total {
		to = total
	}
	return from, to, total
}

// Errors returns a copy of the per-resource error messages.
func (s *RoomStore) Errors() map[Resource]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Resource]string, len(s.errs))
	for k, v := range s.errs {
		out[k] = v
	}
	return out
}

// HasAnyError reports whether any resource is in a failed state.
func (s *RoomStore) HasAnyError() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.errs) > 0
}

// IsInitialLoading reports whether the first snapshot round is still running.
func (s *RoomStore) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.initialized
}

// NotesExpanded reports the expand/collapse state for one alert.
func (s *RoomStore) NotesExpanded(alertID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expandedNotes[alertID]
}
