package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/hzfeng/papertrade/internal/domain"
)

// Memory is an Archive that keeps everything in process memory. It is
// the default when no database DSN is configured; state is lost on
// restart, which is acceptable for a simulation.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]domain.AccountState
	orders   map[int64]*domain.Order
	trades   []*domain.Trade
}

// NewMemory creates an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]domain.AccountState),
		orders:   make(map[int64]*domain.Order),
	}
}

func (m *Memory) LoadAccounts(ctx context.Context) ([]domain.AccountState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]domain.AccountState, 0, len(m.accounts))
	for _, s := range m.accounts {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Seq < states[j].Seq })
	return states, nil
}

func (m *Memory) SaveAccount(ctx context.Context, state domain.AccountState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[state.AccountID] = state
	return nil
}

func (m *Memory) LoadOrders(ctx context.Context) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]*domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		orders = append(orders, o.Clone())
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })
	return orders, nil
}

func (m *Memory) SaveOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders[order.OrderID] = order.Clone()
	return nil
}

func (m *Memory) LoadTrades(ctx context.Context) ([]*domain.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]*domain.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		c := *t
		trades = append(trades, &c)
	}
	return trades, nil
}

func (m *Memory) AppendTrade(ctx context.Context, trade *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *trade
	m.trades = append(m.trades, &c)
	return nil
}

func (m *Memory) Close() {}
