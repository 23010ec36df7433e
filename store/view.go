package store

import "roomsync/models"

// Pagination is the window metadata for the alerts list.
type Pagination struct {
	Page        int `json:"page"`
	TotalPages  int `json:"total_pages"`
	ShowingFrom int `json:"showing_from"`
	ShowingTo   int `json:"showing_to"`
	Total       int `json:"total"`
}

// RoomView is the merged view model rendered to dashboard clients: live data
// where available, fallbacks where not, plus per-resource errors.
type RoomView struct {
	Room            string                  `json:"room"`
	Alerts          []models.Alert          `json:"alerts"`
	Filter          string                  `json:"filter"`
	Pagination      Pagination              `json:"pagination"`
	TradePlan       []models.TradePlanEntry `json:"trade_plan"`
	Stats           models.RoomStats        `json:"stats"`
	ActivePositions []models.Trade          `json:"active_positions"`
	ClosedTrades    []models.Trade          `json:"closed_trades"`
	WeeklyContent   models.WeeklyVideo      `json:"weekly_content"`
	IsAdmin         bool                    `json:"is_admin"`
	Errors          map[Resource]string     `json:"errors,omitempty"`
	Loading         bool                    `json:"loading"`
}

// Snapshot assembles the full derived view in one pass.
func (s *RoomStore) Snapshot() RoomView {
	from, to, total := s.ShowingRange()

	return RoomView{
		Room:   s.room,
		Alerts: s.FilteredAlerts(),
		Filter: s.Filter(),
		Pagination: Pagination{
			Page:        s.CurrentPage(),
			TotalPages:  s.TotalPages(),
			ShowingFrom: from,
			ShowingTo:   to,
			Total:       total,
		},
		TradePlan:       s.TradePlan(),
		Stats:           s.Stats(),
		ActivePositions: s.ActivePositions(),
		ClosedTrades:    s.ClosedTrades(),
		WeeklyContent:   s.WeeklyContent(),
		IsAdmin:         s.IsAdmin(),
		Errors:          s.Errors(),
		Loading:         s.IsInitialLoading(),
	}
}
