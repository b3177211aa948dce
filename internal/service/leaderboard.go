package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hzfeng/papertrade/internal/ledger"
	"github.com/hzfeng/papertrade/internal/market"
)

// LeaderboardService ranks accounts by total assets. Read-only.
type LeaderboardService struct {
	ledger *ledger.Ledger
	quotes *market.QuoteCache
	logger *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(ldg *ledger.Ledger, quotes *market.QuoteCache, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		ledger: ldg,
		quotes: quotes,
		logger: logger,
	}
}

// LeaderboardEntry is one ranked account. Monetary amounts are in
// cents.
type LeaderboardEntry struct {
	Rank        int
	AccountID   string
	Name        string
	Group       string
	CashBalance int64
	MarketValue int64
	TotalAssets int64
}

// Standings returns accounts ranked by total assets, descending. An
// empty group ranks every account. Positions are valued at the latest
// cached quote after a best-effort batch refresh, falling back to the
// stored mark-to-market price. Equal totals keep registration order.
func (s *LeaderboardService) Standings(ctx context.Context, group string) ([]LeaderboardEntry, error) {
	states := s.ledger.ByGroup(group)

	seen := make(map[string]bool)
	symbols := make([]string, 0)
	for _, state := range states {
		for _, p := range state.Positions {
			if !seen[p.Symbol] {
				seen[p.Symbol] = true
				symbols = append(symbols, p.Symbol)
			}
		}
	}
	if len(symbols) > 0 {
		if _, err := s.quotes.RefreshBatch(ctx, symbols); err != nil {
			s.logger.Warn("quote refresh failed", "group", group, "error", err)
		}
	}

	entries := make([]LeaderboardEntry, 0, len(states))
	for _, state := range states {
		var value int64
		for _, p := range state.Positions {
			price := p.LastPrice
			if q, ok := s.quotes.Peek(p.Symbol); ok && q.Price > 0 {
				price = q.Price
			}
			value += p.Quantity * price
		}
		entries = append(entries, LeaderboardEntry{
			AccountID:   state.AccountID,
			Name:        state.Name,
			Group:       state.Group,
			CashBalance: state.CashBalance,
			MarketValue: value,
			TotalAssets: state.CashBalance + value,
		})
	}

	// ByGroup returns registration order, so a stable sort keeps it for
	// equal totals.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalAssets > entries[j].TotalAssets
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
