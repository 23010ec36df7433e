package store

import (
	"time"

	"roomsync/models"
)

// Static fallback data. Derived views return these whenever the
// corresponding API data is absent or empty, so the dashboard never
// renders a hole while a fetch is pending or failing.

func fallbackStats() models.RoomStats {
	return models.RoomStats{
		WinRate:        0,
		ActiveTrades:   0,
		ClosedThisWeek: 0,
		TotalTrades:    0,
		WeeklyProfit:   0,
	}
}

func fallbackTradePlan(room string) []models.TradePlanEntry {
	return []models.TradePlanEntry{
		{
			ID:        -1,
			RoomSlug:  room,
			Ticker:    "SPY",
			Bias:      models.BiasNeutral,
			Notes:     "Trade plan loading, check back shortly.",
			SortOrder: 1,
		},
	}
}

func fallbackWeeklyVideo(room string) models.WeeklyVideo {
	return models.WeeklyVideo{
		ID:            -1,
		RoomSlug:      room,
		WeekTitle:     "This Week's Outlook",
		VideoTitle:    "Weekly video coming soon",
		VideoPlatform: "youtube",
		IsCurrent:     true,
		PublishedAt:   time.Now().UTC().Truncate(24 * time.Hour),
	}
}
