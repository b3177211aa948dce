package domain

import "time"

// Trade represents the execution of a filled order against the market
// quote. RealizedPnL is populated for sells only: proceeds minus cost
// basis minus commission.
type Trade struct {
	TradeID     string
	OrderID     int64
	AccountID   string
	Symbol      string
	Side        OrderSide
	Price       int64 // cents
	Quantity    int64
	Commission  int64 // cents
	RealizedPnL int64 // cents, 0 for buys
	ExecutedAt  time.Time
}
