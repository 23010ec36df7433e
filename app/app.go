// Package app composes the sync daemon: one websocket connection per room,
// a room store fed from the platform API, a bridge reconciling the two, and
// the dashboard HTTP surface on top.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"roomsync/api"
	"roomsync/bridge"
	"roomsync/cache"
	"roomsync/config"
	"roomsync/journal"
	"roomsync/notifications"
	"roomsync/platform"
	"roomsync/realtime"
	"roomsync/store"
	"roomsync/websocket"
)

// room bundles one room's sync machinery.
type room struct {
	store   *store.RoomStore
	bridge  *bridge.Bridge
	manager *websocket.ConnectionManager
}

// App is the application composition root.
type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	platform *platform.Client

	rooms map[string]*room
	order []string

	broker  *realtime.Broker
	redis   *cache.RedisClient
	journal *journal.Journal
	server  *api.Server
}

// New creates the app. Wiring that can fail happens in Start.
func New(cfg *config.Config, log zerolog.Logger) *App {
	return &App{
		cfg:   cfg,
		log:   log,
		rooms: make(map[string]*room),
	}
}

// Rooms lists the configured room slugs in configuration order.
func (a *App) Rooms() []string {
	return a.order
}

// Store returns the room's store, if the room is configured.
func (a *App) Store(slug string) (*store.RoomStore, bool) {
	r, ok := a.rooms[slug]
	if !ok {
		return nil, false
	}
	return r.store, true
}

// Bridge returns the room's bridge, if the room is configured.
func (a *App) Bridge(slug string) (*bridge.Bridge, bool) {
	r, ok := a.rooms[slug]
	if !ok {
		return nil, false
	}
	return r.bridge, true
}

// Start wires everything and blocks until SIGINT/SIGTERM.
func (a *App) Start() error {
	if len(a.cfg.Rooms) == 0 {
		return fmt.Errorf("no rooms configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.log.Info().Strs("rooms", a.cfg.Rooms).Msg("🚀 Starting roomsync")

	// Redis is optional: a nil client disables caching.
	a.redis = cache.NewRedisClient(a.cfg.RedisHost, a.cfg.RedisPort, a.cfg.RedisPassword, a.log)

	if a.cfg.JournalEnabled {
		j, err := journal.Connect(a.cfg.DatabaseHost, a.cfg.DatabasePort, a.cfg.DatabaseName,
			a.cfg.DatabaseUser, a.cfg.DatabasePassword, a.log)
		if err != nil {
			a.log.Warn().Err(err).Msg("⚠️  Journal unavailable, continuing without it")
		} else {
			a.journal = j
			a.log.Info().Msg("✅ Event journal connected")
		}
	}

	a.platform = platform.NewClient(a.cfg.APIBaseURL, a.cfg.APIToken, a.redis, a.log)
	a.platform.SetCachePolicies(platform.CachePolicies{
		Alerts:      a.cfg.Cache.AlertsTTL,
		TradePlan:   a.cfg.Cache.TradePlanTTL,
		Stats:       a.cfg.Cache.StatsTTL,
		Trades:      a.cfg.Cache.TradesTTL,
		WeeklyVideo: a.cfg.Cache.WeeklyVideoTTL,
	})

	a.broker = realtime.NewBroker(a.log)
	go a.broker.Run(ctx)

	notifier := notifications.NewNotifier(
		notifications.NewToaster(a.broker),
		notifications.NewWebhookManager(a.cfg.Webhooks, a.log),
	)

	rt := a.cfg.Realtime
	for _, slug := range a.cfg.Rooms {
		st := store.NewRoomStore(slug, a.platform, rt.PerPage, a.log)

		manager := websocket.NewConnectionManager(a.cfg.WSURL, a.cfg.APIToken, []string{slug},
			rt.PingInterval, rt.StaleAfter, rt.ReconnectDelay, rt.MaxReconnect, a.log)

		br := bridge.New(slug, manager, st, notifier, a.journalOrNil(), bridge.Options{
			BadgeWindow:   rt.BadgeWindow,
			SweepInterval: rt.SweepInterval,
			StatePoll:     rt.StatePoll,
		}, a.log)
		br.Events = a.broker
		br.OnStatusChange = func(slug string) func(websocket.State) {
			return func(state websocket.State) {
				a.broker.Broadcast("connection", slug, map[string]string{"status": string(state)})
			}
		}(slug)

		a.rooms[slug] = &room{store: st, bridge: br, manager: manager}
		a.order = append(a.order, slug)
	}

	// Initial snapshots load concurrently; a room that fails to load still
	// starts and recovers through the bridge's refetch triggers.
	var wg sync.WaitGroup
	for _, slug := range a.order {
		wg.Add(1)
		go func(r *room) {
			defer wg.Done()
			r.store.Initialize(ctx)
		}(a.rooms[slug])
	}
	wg.Wait()

	for _, slug := range a.order {
		r := a.rooms[slug]
		if err := r.manager.Connect(); err != nil {
			a.log.Warn().Err(err).Str("room", slug).Msg("⚠️  Initial connect failed, reconnect loop will retry")
		}
		go r.manager.Run(ctx)
		go r.manager.RunHealthMonitor(ctx)

		if err := r.bridge.Connect(); err != nil {
			a.log.Error().Err(err).Str("room", slug).Msg("bridge start failed")
		}
	}

	a.server = api.NewServer(fmt.Sprintf("%d", a.cfg.HTTPPort), a, a.platform, a.broker, a.log)
	if a.journal != nil {
		a.server.SetJournal(a.journal)
	}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start()
	}()

	a.log.Info().Msg("✅ roomsync running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("🛑 Shutting down")
	case err := <-serverErr:
		if err != nil {
			a.log.Error().Err(err).Msg("api server exited")
		}
	}

	cancel()
	a.shutdown()
	return nil
}

func (a *App) journalOrNil() bridge.Journal {
	if a.journal == nil {
		return nil
	}
	return a.journal
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, slug := range a.order {
		a.rooms[slug].bridge.Disconnect()
	}

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("api shutdown error")
		}
	}

	for _, slug := range a.order {
		a.rooms[slug].manager.Close()
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("journal close error")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close error")
		}
	}

	a.log.Info().Msg("👋 Shutdown complete")
}
