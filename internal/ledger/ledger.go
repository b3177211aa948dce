package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
)

// Ledger owns every account and is the single writer of cash and
// position state. Map access is guarded by mu; balance mutations take
// the per-account mutex, so two orders for the same account serialize
// even when they race on different symbols.
//
// Lock order everywhere: symbol book lock first, account mutex second.
// The ledger itself never takes a book lock.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	seq      int64
}

func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[string]*domain.Account)}
}

// Open registers a new account funded with initialCash cents.
func (l *Ledger) Open(accountID, name, group string, initialCash int64) (domain.AccountState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[accountID]; ok {
		return domain.AccountState{}, domain.ErrAccountAlreadyExists
	}

	l.seq++
	a := &domain.Account{
		AccountID:   accountID,
		Name:        name,
		Group:       group,
		CashBalance: initialCash,
		Positions:   make(map[string]*domain.Position),
		Seq:         l.seq,
		CreatedAt:   time.Now().UTC(),
	}
	l.accounts[accountID] = a
	return a.State(), nil
}

// Restore loads persisted accounts at boot, replacing any in-memory
// state for the same ids and advancing the registration sequence past
// the highest restored value.
func (l *Ledger) Restore(states []domain.AccountState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range states {
		a := &domain.Account{
			AccountID:    s.AccountID,
			Name:         s.Name,
			Group:        s.Group,
			CashBalance:  s.CashBalance,
			ReservedCash: s.ReservedCash,
			Positions:    make(map[string]*domain.Position),
			Seq:          s.Seq,
			SettledDay:   s.SettledDay,
			CreatedAt:    s.CreatedAt,
		}
		for _, p := range s.Positions {
			pos := p
			a.Positions[pos.Symbol] = &pos
		}
		l.accounts[a.AccountID] = a
		if a.Seq > l.seq {
			l.seq = a.Seq
		}
	}
}

// Exists reports whether an account is registered.
func (l *Ledger) Exists(accountID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[accountID]
	return ok
}

// Count returns the number of registered accounts.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}

// Snapshot returns a point-in-time copy of the account.
func (l *Ledger) Snapshot(accountID string) (domain.AccountState, error) {
	a, err := l.get(accountID)
	if err != nil {
		return domain.AccountState{}, err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()
	return a.State(), nil
}

// AccountIDs returns all account ids in registration order.
func (l *Ledger) AccountIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.accounts))
	for id := range l.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return l.accounts[ids[i]].Seq < l.accounts[ids[j]].Seq
	})
	return ids
}

// ByGroup snapshots every account in the group ("" means all),
// ordered by registration sequence.
func (l *Ledger) ByGroup(group string) []domain.AccountState {
	l.mu.RLock()
	accounts := make([]*domain.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		if group == "" || a.Group == group {
			accounts = append(accounts, a)
		}
	}
	l.mu.RUnlock()

	states := make([]domain.AccountState, 0, len(accounts))
	for _, a := range accounts {
		a.Mu.Lock()
		states = append(states, a.State())
		a.Mu.Unlock()
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].Seq < states[j].Seq
	})
	return states
}

// HeldSymbols returns the distinct symbols held across all accounts.
func (l *Ledger) HeldSymbols() []string {
	l.mu.RLock()
	accounts := make([]*domain.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	l.mu.RUnlock()

	seen := make(map[string]bool)
	for _, a := range accounts {
		a.Mu.Lock()
		for sym := range a.Positions {
			seen[sym] = true
		}
		a.Mu.Unlock()
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// ReserveCash locks amount cents for a pending buy. The sufficiency
// check and the reservation are atomic under the account mutex.
func (l *Ledger) ReserveCash(accountID string, amount int64) error {
	a, err := l.get(accountID)
	if err != nil {
		return err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	if a.AvailableCash() < amount {
		return domain.ErrInsufficientFunds
	}
	a.ReservedCash += amount
	return nil
}

// ReleaseCash returns a buy reservation to the available balance.
// Each reservation is released or settled exactly once.
func (l *Ledger) ReleaseCash(accountID string, amount int64) error {
	a, err := l.get(accountID)
	if err != nil {
		return err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()
	a.ReservedCash -= amount
	return nil
}

// ReserveShares locks qty shares of symbol for a pending sell.
func (l *Ledger) ReserveShares(accountID, symbol string, qty int64) error {
	a, err := l.get(accountID)
	if err != nil {
		return err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	p, ok := a.Positions[symbol]
	if !ok || p.Sellable() < qty {
		return domain.ErrInsufficientShares
	}
	p.Reserved += qty
	return nil
}

// ReleaseShares returns a sell reservation to the sellable quantity.
func (l *Ledger) ReleaseShares(accountID, symbol string, qty int64) error {
	a, err := l.get(accountID)
	if err != nil {
		return err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	if p, ok := a.Positions[symbol]; ok {
		p.Reserved -= qty
	}
	return nil
}

// SettleBuy consumes a cash reservation and applies a buy execution:
// cash drops by qty*price plus commission, the position grows by qty.
// Commission is charged to cash, not to the cost basis. The new shares
// stay out of Available until the next daily settlement (T+1).
func (l *Ledger) SettleBuy(accountID, symbol string, qty, price, commission, reserved int64, now time.Time) (domain.AccountState, error) {
	a, err := l.get(accountID)
	if err != nil {
		return domain.AccountState{}, err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	a.ReservedCash -= reserved
	a.CashBalance -= qty*price + commission

	p, ok := a.Positions[symbol]
	if !ok {
		p = &domain.Position{Symbol: symbol}
		a.Positions[symbol] = p
	}
	p.Quantity += qty
	p.TotalCost += qty * price
	p.LastPrice = price
	p.UpdatedAt = now

	return a.State(), nil
}

// SettleSell consumes a share reservation and applies a sell
// execution: the position shrinks by qty with a proportional cost
// basis reduction, cash grows by the proceeds net of commission.
// Returns the realized profit or loss against the cost basis. An
// emptied position is removed.
func (l *Ledger) SettleSell(accountID, symbol string, qty, price, commission int64, now time.Time) (int64, domain.AccountState, error) {
	a, err := l.get(accountID)
	if err != nil {
		return 0, domain.AccountState{}, err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	p, ok := a.Positions[symbol]
	if !ok || p.Reserved < qty || p.Quantity < qty {
		return 0, domain.AccountState{}, domain.ErrInsufficientShares
	}

	basis := p.TotalCost * qty / p.Quantity
	proceeds := qty*price - commission
	pnl := proceeds - basis

	p.Quantity -= qty
	p.Available -= qty
	p.Reserved -= qty
	p.TotalCost -= basis
	p.LastPrice = price
	p.UpdatedAt = now
	if p.Quantity == 0 {
		delete(a.Positions, symbol)
	}

	a.CashBalance += proceeds
	return pnl, a.State(), nil
}

// ApplyDailySettlement promotes all of an account's shares to
// Available (T+1 unlock) and marks positions at the supplied prices.
// day is the trading day being settled; a second run for the same day
// is a no-op, so the job is safe to re-run. Returns whether the
// account changed.
func (l *Ledger) ApplyDailySettlement(accountID, day string, marks map[string]int64, now time.Time) (bool, domain.AccountState, error) {
	a, err := l.get(accountID)
	if err != nil {
		return false, domain.AccountState{}, err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	if a.SettledDay == day {
		return false, a.State(), nil
	}

	for _, p := range a.Positions {
		p.Available = p.Quantity
		if price, ok := marks[p.Symbol]; ok && price > 0 {
			p.LastPrice = price
		}
		p.UpdatedAt = now
	}
	a.SettledDay = day
	return true, a.State(), nil
}

func (l *Ledger) get(accountID string) (*domain.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}
