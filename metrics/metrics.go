// Package metrics exposes Prometheus instrumentation for the sync pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceived counts realtime messages by tag, accepted or not.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "events_received_total",
		Help:      "Realtime messages received, by event type.",
	}, []string{"type"})

	// EventsDropped counts messages discarded before reaching the store.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "events_dropped_total",
		Help:      "Realtime messages discarded, by reason (room_mismatch, duplicate, decode).",
	}, []string{"reason"})

	// FetchTotal counts platform API fetches by resource and outcome.
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "fetch_total",
		Help:      "Platform API fetches, by resource and outcome.",
	}, []string{"resource", "outcome"})

	// FetchDuration observes platform API fetch latency.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomsync",
		Name:      "fetch_duration_seconds",
		Help:      "Platform API fetch latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource"})

	// Reconnects counts upstream socket reconnect attempts.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "ws_reconnects_total",
		Help:      "Upstream WebSocket reconnect attempts.",
	})

	// ToastsSent counts toast events published to dashboard clients.
	ToastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "toasts_sent_total",
		Help:      "Toast events broadcast to dashboard clients.",
	})

	// WebhookDeliveries counts webhook notification deliveries by status.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "webhook_deliveries_total",
		Help:      "Webhook notification deliveries, by status.",
	}, []string{"status"})

	// CacheHits counts snapshot cache hits and misses.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "cache_requests_total",
		Help:      "Snapshot cache lookups, by result (hit, miss).",
	}, []string{"result"})
)
