package store

import (
	"sort"
	"sync"

	"github.com/hzfeng/papertrade/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a
// primary index by order id and a secondary index by account id.
// Order ids are assigned here, monotonically and never reused.
type OrderStore struct {
	mu            sync.RWMutex
	orders        map[int64]*domain.Order
	accountOrders map[string][]*domain.Order // account_id → orders (append-only)
	nextID        int64
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:        make(map[int64]*domain.Order),
		accountOrders: make(map[string][]*domain.Order),
	}
}

// Create assigns the next order id, adds the order to the store and
// appends it to the account's secondary index.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	o.OrderID = s.nextID
	s.orders[o.OrderID] = o
	s.accountOrders[o.AccountID] = append(s.accountOrders[o.AccountID], o)
}

// Get retrieves an order by id. It returns domain.ErrOrderNotFound if
// the order does not exist.
func (s *OrderStore) Get(id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListByAccount returns orders for an account in reverse chronological
// order (newest first). If status is non-nil, only orders matching
// that status are included. Pagination is 1-based. Returns the
// requested page and the total count of matching orders.
func (s *OrderStore) ListByAccount(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.accountOrders[accountID]

	// Filter by status if provided, collecting in reverse order.
	filtered := make([]*domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if status != nil && all[i].Status != *status {
			continue
		}
		filtered = append(filtered, all[i])
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []*domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}

// PendingByAccount returns an account's pending orders in creation
// order. The account summary shows open orders without pagination.
func (s *OrderStore) PendingByAccount(accountID string) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*domain.Order, 0)
	for _, o := range s.accountOrders[accountID] {
		if o.Pending() {
			pending = append(pending, o)
		}
	}
	return pending
}

// Pending returns every order still in the pending state, in creation
// order. Used to rebuild the matching index at boot.
func (s *OrderStore) Pending() []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*domain.Order, 0)
	for _, o := range s.orders {
		if o.Pending() {
			pending = append(pending, o)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].OrderID < pending[j].OrderID
	})
	return pending
}

// Restore loads persisted orders at boot, rebuilding the account index
// in creation order and advancing the id counter past the highest
// restored id.
func (s *OrderStore) Restore(orders []*domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]*domain.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OrderID < sorted[j].OrderID
	})

	for _, o := range sorted {
		s.orders[o.OrderID] = o
		s.accountOrders[o.AccountID] = append(s.accountOrders[o.AccountID], o)
		if o.OrderID > s.nextID {
			s.nextID = o.OrderID
		}
	}
}
