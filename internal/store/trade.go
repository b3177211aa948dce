package store

import (
	"sort"
	"sync"

	"github.com/hzfeng/papertrade/internal/domain"
)

// TradeStore is a thread-safe in-memory store for executions, keyed by
// account. Trades are append-only and chronological; unlike orders
// they never mutate after insertion.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*domain.Trade // account_id → trades (chronological)
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds a trade to its account's chronological list.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[t.AccountID] = append(s.trades[t.AccountID], t)
}

// ListByAccount returns an account's trades in reverse chronological
// order (newest first). Pagination is 1-based. Returns the requested
// page and the total trade count.
func (s *TradeStore) ListByAccount(accountID string, page, limit int) ([]*domain.Trade, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.trades[accountID]
	total := len(all)

	reversed := make([]*domain.Trade, 0, total)
	for i := total - 1; i >= 0; i-- {
		reversed = append(reversed, all[i])
	}

	start := (page - 1) * limit
	if start >= total {
		return []*domain.Trade{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return reversed[start:end], total
}

// Restore loads persisted trades at boot in execution order.
func (s *TradeStore) Restore(trades []*domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]*domain.Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt)
	})

	for _, t := range sorted {
		s.trades[t.AccountID] = append(s.trades[t.AccountID], t)
	}
}
