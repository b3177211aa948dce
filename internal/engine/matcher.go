package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hzfeng/papertrade/internal/archive"
	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/ledger"
	"github.com/hzfeng/papertrade/internal/market"
	"github.com/hzfeng/papertrade/internal/rules"
	"github.com/hzfeng/papertrade/internal/store"
)

// WebhookDispatcher is an interface for dispatching webhook
// notifications from the engine layer without depending on the
// service layer directly.
type WebhookDispatcher interface {
	DispatchOrderFilled(order *domain.Order, trade *domain.Trade)
	DispatchOrderCancelled(order *domain.Order)
}

// Matcher executes orders against market quotes. Orders never cross
// each other: a fill always settles at the quote (on placement) or at
// the order's own limit price (on a monitor re-check).
//
// Lock order: per-symbol book lock first, account mutex second, taken
// inside the ledger calls. Archive writes and webhook dispatch happen
// after the book lock is released; in-memory state is authoritative
// and persistence failures only log.
type Matcher struct {
	books    *BookManager
	ledger   *ledger.Ledger
	orders   *store.OrderStore
	trades   *store.TradeStore
	rules    *rules.Engine
	quotes   *market.QuoteCache
	archive  archive.Archive
	webhooks WebhookDispatcher
	logger   *slog.Logger
}

// NewMatcher creates a Matcher with the given dependencies. archive
// and webhooks may be nil.
func NewMatcher(
	books *BookManager,
	ldg *ledger.Ledger,
	orders *store.OrderStore,
	trades *store.TradeStore,
	ruleEngine *rules.Engine,
	quotes *market.QuoteCache,
	arch archive.Archive,
	webhooks WebhookDispatcher,
	logger *slog.Logger,
) *Matcher {
	return &Matcher{
		books:    books,
		ledger:   ldg,
		orders:   orders,
		trades:   trades,
		rules:    ruleEngine,
		quotes:   quotes,
		archive:  arch,
		webhooks: webhooks,
		logger:   logger,
	}
}

// Place runs an order through the engine: fetch a fresh-enough quote,
// validate against the market rules, reserve funds or shares, then
// execute immediately or rest the order for the price monitor.
//
// The caller provides AccountID, Symbol, Side, Kind, Quantity and
// LimitPrice; the matcher assigns the order id and drives all status
// transitions. Orders failing a rule or sufficiency check are recorded
// as rejected with the reason and the check's error is returned.
func (m *Matcher) Place(ctx context.Context, order *domain.Order, now time.Time) (*domain.Order, error) {
	quote, err := m.quotes.Get(ctx, order.Symbol)
	if err != nil {
		return nil, err
	}

	state, trade, placeErr := m.placeLocked(order, quote, now)

	if order.OrderID != 0 {
		m.persistOrder(ctx, order)
	}
	if state != nil {
		m.persistAccount(ctx, *state)
	}
	if trade != nil {
		m.persistTrade(ctx, trade)
		if m.webhooks != nil {
			m.webhooks.DispatchOrderFilled(order, trade)
		}
	}

	if placeErr != nil {
		return nil, placeErr
	}
	return order, nil
}

// placeLocked performs the placement under the symbol lock and
// returns the settled account state and trade when the order executed
// immediately.
func (m *Matcher) placeLocked(order *domain.Order, quote *domain.Quote, now time.Time) (*domain.AccountState, *domain.Trade, error) {
	book := m.books.GetOrCreate(order.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()

	if err := m.rules.CheckPlacement(now, quote, order.Side, order.Kind, order.Quantity, order.LimitPrice); err != nil {
		m.reject(order, now, err)
		return nil, nil, err
	}

	// Reserve before anything becomes visible. The sufficiency check
	// is atomic with the reservation under the account mutex.
	refPrice := rules.ReferencePrice(order.Kind, order.LimitPrice, quote)
	if order.Side == domain.OrderSideBuy {
		required := m.rules.BuyCost(order.Quantity, refPrice)
		if err := m.ledger.ReserveCash(order.AccountID, required); err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return nil, nil, err
			}
			m.reject(order, now, err)
			return nil, nil, err
		}
		order.ReservedCash = required
	} else {
		if err := m.ledger.ReserveShares(order.AccountID, order.Symbol, order.Quantity); err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return nil, nil, err
			}
			m.reject(order, now, err)
			return nil, nil, err
		}
		order.ReservedShares = order.Quantity
	}

	order.Status = domain.OrderStatusPending
	order.CreatedAt = now
	m.orders.Create(order)

	// Market orders execute at the quote. A limit order executes at
	// the quote when it already satisfies the limit; otherwise it
	// rests until the monitor sees a crossing quote.
	if order.Kind == domain.OrderKindMarket || m.rules.Fillable(quote, order.Side, order.LimitPrice) {
		state, trade := m.fill(order, quote.Price, now)
		return &state, trade, nil
	}

	book.Insert(order)
	return nil, nil, nil
}

// reject records a failed placement in the account's order history.
func (m *Matcher) reject(order *domain.Order, now time.Time, cause error) {
	resolved := now
	order.Status = domain.OrderStatusRejected
	order.RejectReason = cause.Error()
	order.ResolvedAt = &resolved
	m.orders.Create(order)
}

// fill executes an order at price, consuming its reservation exactly
// once. The caller holds the symbol lock.
func (m *Matcher) fill(order *domain.Order, price int64, now time.Time) (domain.AccountState, *domain.Trade) {
	value := order.Quantity * price
	commission := m.rules.Commission(value)

	var state domain.AccountState
	var pnl int64
	if order.Side == domain.OrderSideBuy {
		state, _ = m.ledger.SettleBuy(order.AccountID, order.Symbol, order.Quantity, price, commission, order.ReservedCash, now)
	} else {
		pnl, state, _ = m.ledger.SettleSell(order.AccountID, order.Symbol, order.Quantity, price, commission, now)
	}

	trade := &domain.Trade{
		TradeID:     uuid.New().String(),
		OrderID:     order.OrderID,
		AccountID:   order.AccountID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       price,
		Quantity:    order.Quantity,
		Commission:  commission,
		RealizedPnL: pnl,
		ExecutedAt:  now,
	}

	resolved := now
	order.Status = domain.OrderStatusFilled
	order.ResolvedAt = &resolved
	order.Trade = trade
	m.trades.Append(trade)

	return state, trade
}

// Cancel transitions a pending order to cancelled and releases its
// reservation. An order belonging to another account is reported as
// not found rather than forbidden.
func (m *Matcher) Cancel(ctx context.Context, accountID string, orderID int64, now time.Time) (*domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, domain.ErrOrderNotFound
	}

	book := m.books.GetOrCreate(order.Symbol)
	book.mu.Lock()

	// Re-check under the lock: the monitor may have filled the order
	// since the store lookup.
	if !order.Pending() {
		book.mu.Unlock()
		return nil, domain.ErrOrderNotPending
	}

	book.Remove(order.OrderID)
	resolved := now
	order.Status = domain.OrderStatusCancelled
	order.ResolvedAt = &resolved

	if order.Side == domain.OrderSideBuy {
		m.ledger.ReleaseCash(order.AccountID, order.ReservedCash)
	} else {
		m.ledger.ReleaseShares(order.AccountID, order.Symbol, order.ReservedShares)
	}

	book.mu.Unlock()

	m.persistOrder(ctx, order)
	if state, serr := m.ledger.Snapshot(order.AccountID); serr == nil {
		m.persistAccount(ctx, state)
	}
	if m.webhooks != nil {
		m.webhooks.DispatchOrderCancelled(order)
	}
	return order, nil
}

// RecheckSymbol fills every pending order the quote now satisfies,
// each at its own limit price, buys before sells and in book priority
// within a side. Returns the number of fills. Suspended quotes leave
// the book untouched.
func (m *Matcher) RecheckSymbol(ctx context.Context, symbol string, quote *domain.Quote, now time.Time) int {
	book := m.books.GetOrCreate(symbol)

	book.mu.Lock()

	var fillable []*domain.Order
	if !quote.Suspended && quote.Price > 0 {
		// Both walks run in fill priority, so they can stop at the
		// first entry the quote no longer crosses.
		if !quote.AtLimitUp() {
			book.WalkBuys(func(e BookEntry) bool {
				if quote.Price > e.Price {
					return false
				}
				fillable = append(fillable, e.Order)
				return true
			})
		}
		if !quote.AtLimitDown() {
			book.WalkSells(func(e BookEntry) bool {
				if quote.Price < e.Price {
					return false
				}
				fillable = append(fillable, e.Order)
				return true
			})
		}
	}

	type fillResult struct {
		order *domain.Order
		state domain.AccountState
		trade *domain.Trade
	}
	results := make([]fillResult, 0, len(fillable))
	for _, order := range fillable {
		book.Remove(order.OrderID)
		// A resting order fills at the price it was accepted at, not
		// at whatever the quote moved to.
		state, trade := m.fill(order, order.LimitPrice, now)
		results = append(results, fillResult{order, state, trade})
	}

	book.mu.Unlock()

	for _, r := range results {
		m.persistOrder(ctx, r.order)
		m.persistAccount(ctx, r.state)
		m.persistTrade(ctx, r.trade)
		if m.webhooks != nil {
			m.webhooks.DispatchOrderFilled(r.order, r.trade)
		}
	}
	return len(results)
}

// RestorePending reinserts persisted pending orders into their books
// at boot. Reservations ride along in the restored account states, so
// nothing is recomputed.
func (m *Matcher) RestorePending(orders []*domain.Order) {
	for _, o := range orders {
		if !o.Pending() {
			continue
		}
		book := m.books.GetOrCreate(o.Symbol)
		book.mu.Lock()
		book.Insert(o)
		book.mu.Unlock()
	}
}

func (m *Matcher) persistOrder(ctx context.Context, order *domain.Order) {
	if m.archive == nil {
		return
	}
	if err := m.archive.SaveOrder(ctx, order); err != nil {
		m.logger.Warn("archive order write failed", "order_id", order.OrderID, "error", err)
	}
}

func (m *Matcher) persistAccount(ctx context.Context, state domain.AccountState) {
	if m.archive == nil {
		return
	}
	if err := m.archive.SaveAccount(ctx, state); err != nil {
		m.logger.Warn("archive account write failed", "account_id", state.AccountID, "error", err)
	}
}

func (m *Matcher) persistTrade(ctx context.Context, trade *domain.Trade) {
	if m.archive == nil {
		return
	}
	if err := m.archive.AppendTrade(ctx, trade); err != nil {
		m.logger.Warn("archive trade write failed", "trade_id", trade.TradeID, "error", err)
	}
}
