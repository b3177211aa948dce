package rules

import (
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
)

// SessionCalendar answers whether the exchange accepts orders at a
// given instant.
type SessionCalendar interface {
	IsOpen(t time.Time) bool
}

// Engine validates orders against the exchange rules: session windows,
// suspension, lot sizes, price bands and the limit-up/limit-down edge
// rule. It holds no mutable state; funds and share sufficiency are
// enforced atomically by the ledger at reservation time.
type Engine struct {
	cal         SessionCalendar
	lotSize     int64
	feeRateBps  int64 // commission rate in basis points
	minFee      int64 // cents
	minBuyValue int64 // cents, minimum notional for a buy order
}

// NewEngine creates a rule engine. lotSize is the board lot in shares,
// feeRateBps the commission rate in basis points, minFee and
// minBuyValue in cents.
func NewEngine(cal SessionCalendar, lotSize, feeRateBps, minFee, minBuyValue int64) *Engine {
	return &Engine{
		cal:         cal,
		lotSize:     lotSize,
		feeRateBps:  feeRateBps,
		minFee:      minFee,
		minBuyValue: minBuyValue,
	}
}

// Commission returns the fee charged on a trade of the given notional
// value: value * rate, floored at the minimum fee.
func (e *Engine) Commission(value int64) int64 {
	fee := value * e.feeRateBps / 10000
	if fee < e.minFee {
		return e.minFee
	}
	return fee
}

// BuyCost returns the cash required to execute a buy: notional value
// plus commission. This is also the amount reserved for a pending buy.
func (e *Engine) BuyCost(qty, price int64) int64 {
	value := qty * price
	return value + e.Commission(value)
}

// SellProceeds returns the cash credited by a sell after commission.
func (e *Engine) SellProceeds(qty, price int64) int64 {
	value := qty * price
	return value - e.Commission(value)
}

// ReferencePrice returns the price an order is costed against: the
// limit price for limit orders, the current quote for market orders.
func ReferencePrice(kind domain.OrderKind, limitPrice int64, q *domain.Quote) int64 {
	if kind == domain.OrderKindLimit {
		return limitPrice
	}
	return q.Price
}

// CheckPlacement runs the placement checks in a fixed sequence and
// returns the first failure: session, suspension, quantity, band
// (limit orders only), edge rule, minimum value. Funds and shares are
// checked by the ledger when the reservation is taken.
func (e *Engine) CheckPlacement(now time.Time, q *domain.Quote, side domain.OrderSide, kind domain.OrderKind, qty, limitPrice int64) error {
	if !e.cal.IsOpen(now) {
		return domain.ErrSessionClosed
	}
	if q.Suspended || q.Price <= 0 {
		return domain.ErrSymbolSuspended
	}
	if qty <= 0 || qty%e.lotSize != 0 {
		return domain.ErrInvalidQuantity
	}
	if kind == domain.OrderKindLimit && !q.InBand(limitPrice) {
		return domain.ErrPriceOutOfBand
	}
	// At limit-up buy demand is saturated; at limit-down sell pressure
	// is. The blocked side cannot trade at any price.
	if side == domain.OrderSideBuy && q.AtLimitUp() {
		return domain.ErrPriceLimitBlocked
	}
	if side == domain.OrderSideSell && q.AtLimitDown() {
		return domain.ErrPriceLimitBlocked
	}

	value := qty * ReferencePrice(kind, limitPrice, q)
	if side == domain.OrderSideBuy && value < e.minBuyValue {
		return domain.ErrOrderValueTooSmall
	}
	// A sell whose notional cannot cover its own commission would
	// settle at negative proceeds.
	if side == domain.OrderSideSell && value < e.minFee {
		return domain.ErrOrderValueTooSmall
	}
	return nil
}

// Fillable reports whether a resting limit order crosses the quote and
// is allowed to execute. Buys fill when the quote is at or below the
// limit, unless the quote sits at limit-up; sells mirror that at
// limit-down. Suspended symbols never fill.
func (e *Engine) Fillable(q *domain.Quote, side domain.OrderSide, limitPrice int64) bool {
	if q.Suspended || q.Price <= 0 {
		return false
	}
	switch side {
	case domain.OrderSideBuy:
		return !q.AtLimitUp() && q.Price <= limitPrice
	case domain.OrderSideSell:
		return !q.AtLimitDown() && q.Price >= limitPrice
	}
	return false
}
