package handler

import (
	"net/http"

	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/service"
)

// LeaderboardHandler handles HTTP requests for the leaderboard.
type LeaderboardHandler struct {
	boardSvc *service.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(boardSvc *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{boardSvc: boardSvc}
}

// leaderboardEntryResponse is a single ranked account.
type leaderboardEntryResponse struct {
	Rank        int     `json:"rank"`
	AccountID   string  `json:"account_id"`
	Name        string  `json:"name"`
	Group       string  `json:"group"`
	CashBalance float64 `json:"cash_balance"`
	MarketValue float64 `json:"market_value"`
	TotalAssets float64 `json:"total_assets"`
}

// leaderboardResponse is the JSON response for GET /leaderboard.
type leaderboardResponse struct {
	Leaderboard []leaderboardEntryResponse `json:"leaderboard"`
}

// Standings handles GET /leaderboard. The optional group query
// parameter restricts the ranking to one group.
func (h *LeaderboardHandler) Standings(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")

	entries, err := h.boardSvc.Standings(r.Context(), group)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	items := make([]leaderboardEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = leaderboardEntryResponse{
			Rank:        e.Rank,
			AccountID:   e.AccountID,
			Name:        e.Name,
			Group:       e.Group,
			CashBalance: domain.CentsToYuan(e.CashBalance),
			MarketValue: domain.CentsToYuan(e.MarketValue),
			TotalAssets: domain.CentsToYuan(e.TotalAssets),
		}
	}

	WriteJSON(w, http.StatusOK, leaderboardResponse{Leaderboard: items})
}
