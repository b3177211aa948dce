package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/engine"
	"github.com/hzfeng/papertrade/internal/ledger"
	"github.com/hzfeng/papertrade/internal/store"
)

// validStatusFilters are the order statuses accepted by ListOrders.
var validStatusFilters = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:   true,
	domain.OrderStatusFilled:    true,
	domain.OrderStatusCancelled: true,
	domain.OrderStatusRejected:  true,
}

// OrderService validates order commands and drives them through the
// matching engine.
type OrderService struct {
	matcher *engine.Matcher
	orders  *store.OrderStore
	ledger  *ledger.Ledger
	now     func() time.Time
}

// NewOrderService creates an OrderService.
func NewOrderService(matcher *engine.Matcher, orders *store.OrderStore, ldg *ledger.Ledger) *OrderService {
	return &OrderService{
		matcher: matcher,
		orders:  orders,
		ledger:  ldg,
		now:     time.Now,
	}
}

// PlaceOrderRequest is the input for Place. Price is in yuan and only
// valid for limit orders.
type PlaceOrderRequest struct {
	AccountID string
	Symbol    string
	Side      string
	Kind      string
	Quantity  int64
	Price     *float64
}

// Place validates the request and submits the order to the engine. The
// returned order is terminal (filled or rejected) or resting pending.
func (s *OrderService) Place(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if !s.ledger.Exists(req.AccountID) {
		return nil, domain.ErrAccountNotFound
	}

	symbol, err := domain.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}

	side := domain.OrderSide(req.Side)
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}

	kind := domain.OrderKind(req.Kind)
	if kind != domain.OrderKindLimit && kind != domain.OrderKindMarket {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order kind: %s. Must be one of: limit, market", req.Kind),
		}
	}

	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}

	var limitPrice int64
	if kind == domain.OrderKindLimit {
		if req.Price == nil {
			return nil, &domain.ValidationError{
				Message: "price is required for limit orders",
			}
		}
		if *req.Price <= 0 {
			return nil, &domain.ValidationError{
				Message: "price must be greater than 0",
			}
		}
		limitPrice, err = domain.YuanToCents(*req.Price)
		if err != nil {
			return nil, &domain.ValidationError{
				Message: "price must have at most 2 decimal places",
			}
		}
	} else if req.Price != nil {
		return nil, &domain.ValidationError{
			Message: "market orders must not include price",
		}
	}

	order := &domain.Order{
		AccountID:  req.AccountID,
		Symbol:     symbol,
		Side:       side,
		Kind:       kind,
		Quantity:   req.Quantity,
		LimitPrice: limitPrice,
	}
	return s.matcher.Place(ctx, order, s.now())
}

// Cancel cancels a pending order and releases its reservation.
func (s *OrderService) Cancel(ctx context.Context, accountID string, orderID int64) (*domain.Order, error) {
	return s.matcher.Cancel(ctx, accountID, orderID, s.now())
}

// GetOrder returns a single order. An order belonging to another
// account is reported as not found.
func (s *OrderService) GetOrder(accountID string, orderID int64) (*domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the account's orders newest first, optionally
// filtered by status. Pagination is 1-based; limit must be between 1
// and 100.
func (s *OrderService) ListOrders(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if !s.ledger.Exists(accountID) {
		return nil, 0, domain.ErrAccountNotFound
	}
	if status != nil && !validStatusFilters[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: pending, filled, cancelled, rejected", *status),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.orders.ListByAccount(accountID, status, page, limit)
	return orders, total, nil
}
