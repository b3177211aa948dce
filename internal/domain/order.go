package domain

import "time"

// OrderKind distinguishes limit orders from market orders.
type OrderKind string

const (
	OrderKindLimit  OrderKind = "limit"
	OrderKindMarket OrderKind = "market"
)

// OrderSide indicates whether an order buys or sells shares.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of an order.
// Pending is the only non-terminal state.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order represents a buy or sell instruction submitted by an account.
type Order struct {
	OrderID    int64
	AccountID  string
	Symbol     string
	Side       OrderSide
	Kind       OrderKind
	Quantity   int64
	LimitPrice int64 // cents, 0 for market orders

	// Resources locked at placement for a pending order. Consumed by the
	// fill or released by cancel, exactly once.
	ReservedCash   int64
	ReservedShares int64

	Status       OrderStatus
	RejectReason string
	CreatedAt    time.Time
	ResolvedAt   *time.Time

	// Trade is the single execution record, set when Status is filled.
	Trade *Trade
}

// Pending reports whether the order can still transition.
func (o *Order) Pending() bool {
	return o.Status == OrderStatusPending
}

// Clone returns a shallow copy safe to hand out of the store.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
