package archive

import (
	"context"

	"github.com/hzfeng/papertrade/internal/domain"
)

// Archive persists engine state for restart recovery. The in-memory
// stores remain authoritative at runtime; writes here are best-effort
// and a failed write never rolls back a ledger mutation. Load methods
// are called once at boot, before the engine accepts traffic.
type Archive interface {
	// LoadAccounts returns every archived account with its positions.
	LoadAccounts(ctx context.Context) ([]domain.AccountState, error)

	// SaveAccount writes the full account snapshot, replacing any
	// previously archived positions for it.
	SaveAccount(ctx context.Context, state domain.AccountState) error

	// LoadOrders returns every archived order sorted by id, with the
	// execution record attached for filled orders.
	LoadOrders(ctx context.Context) ([]*domain.Order, error)

	// SaveOrder inserts or updates the order keyed by its id.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// LoadTrades returns every archived trade.
	LoadTrades(ctx context.Context) ([]*domain.Trade, error)

	// AppendTrade writes a single immutable execution record.
	AppendTrade(ctx context.Context, trade *domain.Trade) error

	// Close releases the underlying connections.
	Close()
}
