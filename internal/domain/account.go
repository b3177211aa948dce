package domain

import (
	"sort"
	"sync"
	"time"
)

// Position represents an account's holding in a single stock symbol.
// Under T+1 settlement, shares bought today sit in Quantity but not in
// Available until the next settlement run promotes them.
type Position struct {
	Symbol    string
	Quantity  int64 // total shares held
	Available int64 // sellable shares (excludes today's buys)
	Reserved  int64 // shares locked by pending sell orders
	TotalCost int64 // cents paid for the open quantity
	LastPrice int64 // cents, latest mark-to-market price
	UpdatedAt time.Time
}

// AvgCost returns the average cost basis per share in cents,
// or 0 for an empty position.
func (p *Position) AvgCost() int64 {
	if p.Quantity == 0 {
		return 0
	}
	return p.TotalCost / p.Quantity
}

// MarketValue returns the position's value at the last seen price.
func (p *Position) MarketValue() int64 {
	return p.Quantity * p.LastPrice
}

// Sellable returns the quantity available for a new sell order.
func (p *Position) Sellable() int64 {
	return p.Available - p.Reserved
}

// Account represents a registered participant in the simulation.
type Account struct {
	AccountID    string
	Name         string
	Group        string
	CashBalance  int64                // total cash in cents, includes reserved
	ReservedCash int64                // cash locked by pending buy orders
	Positions    map[string]*Position // symbol → position
	Seq          int64                // registration sequence, breaks leaderboard ties
	SettledDay   string               // last trading day the settlement job applied
	CreatedAt    time.Time
	Mu           sync.Mutex // per-account lock for balance mutations
}

// AvailableCash returns the account's unreserved cash balance.
func (a *Account) AvailableCash() int64 {
	return a.CashBalance - a.ReservedCash
}

// SellableQuantity returns the unreserved T+1-unlocked quantity for the
// given symbol, or 0 if the account holds no position in it.
func (a *Account) SellableQuantity(symbol string) int64 {
	p, ok := a.Positions[symbol]
	if !ok {
		return 0
	}
	return p.Sellable()
}

// AccountState is a point-in-time copy of an account, safe to hand
// across goroutines, serialize, or persist. Positions are sorted by
// symbol.
type AccountState struct {
	AccountID    string
	Name         string
	Group        string
	CashBalance  int64
	ReservedCash int64
	Positions    []Position
	Seq          int64
	SettledDay   string
	CreatedAt    time.Time
}

// State copies the account. The caller must hold Mu.
func (a *Account) State() AccountState {
	s := AccountState{
		AccountID:    a.AccountID,
		Name:         a.Name,
		Group:        a.Group,
		CashBalance:  a.CashBalance,
		ReservedCash: a.ReservedCash,
		Seq:          a.Seq,
		SettledDay:   a.SettledDay,
		CreatedAt:    a.CreatedAt,
	}
	for _, p := range a.Positions {
		s.Positions = append(s.Positions, *p)
	}
	sort.Slice(s.Positions, func(i, j int) bool {
		return s.Positions[i].Symbol < s.Positions[j].Symbol
	})
	return s
}

// AvailableCash mirrors Account.AvailableCash for a snapshot.
func (s AccountState) AvailableCash() int64 {
	return s.CashBalance - s.ReservedCash
}

// MarketValue sums the positions at their last seen prices.
func (s AccountState) MarketValue() int64 {
	var total int64
	for _, p := range s.Positions {
		total += p.MarketValue()
	}
	return total
}
