package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/hzfeng/papertrade/internal/domain"
)

// 02:00 UTC is 10:00 in Shanghai: inside the morning session.
var propSessionTime = time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)

// checkAccounting verifies that the ledger's reservations agree with
// the pending orders on record and that the book holds exactly the
// pending orders.
func checkAccounting(t *rapid.T, e *testEnv, accountID, symbol string) {
	t.Helper()

	state, err := e.ledger.Snapshot(accountID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	var reservedCash, reservedShares int64
	for _, o := range e.orders.Pending() {
		if o.AccountID != accountID {
			continue
		}
		if o.Side == domain.OrderSideBuy {
			reservedCash += o.ReservedCash
		} else if o.Symbol == symbol {
			reservedShares += o.Quantity
		}
	}

	if state.ReservedCash != reservedCash {
		t.Fatalf("reserved cash %d, pending buys say %d", state.ReservedCash, reservedCash)
	}
	var posReserved int64
	for _, p := range state.Positions {
		if p.Symbol == symbol {
			posReserved = p.Reserved
		}
	}
	if posReserved != reservedShares {
		t.Fatalf("reserved shares %d, pending sells say %d", posReserved, reservedShares)
	}
	if state.AvailableCash() < 0 {
		t.Fatalf("available cash went negative: %d", state.AvailableCash())
	}
	if state.CashBalance < 0 {
		t.Fatalf("cash balance went negative: %d", state.CashBalance)
	}

	// Book and store agree on what is pending.
	book := e.books.GetOrCreate(symbol)
	pendingCount := 0
	for _, o := range e.orders.Pending() {
		if o.Symbol != symbol || o.Kind != domain.OrderKindLimit {
			continue
		}
		pendingCount++
		if !book.Contains(o.OrderID) {
			t.Fatalf("pending limit order %d missing from book", o.OrderID)
		}
	}
	if book.Len() != pendingCount {
		t.Fatalf("book holds %d orders, store says %d pending", book.Len(), pendingCount)
	}
}

// Property: reservations always equal the sum over pending orders, no
// matter how placements, cancels and re-checks interleave, and no
// operation ever drives cash or shares negative.
func TestProperty_ReservationAccounting(t *testing.T) {
	const symbol = "sh600000"

	rapid.Check(t, func(t *rapid.T) {
		e := newEnv()
		now := propSessionTime
		ctx := context.Background()

		if _, err := e.ledger.Open("u1", "Trader u1", "", testInitialCash); err != nil {
			t.Fatalf("open: %v", err)
		}
		e.setQuote(symbol, 1000)

		// Seed sellable inventory: buy and unlock 2000 shares.
		if _, err := e.matcher.Place(ctx, marketOrder("u1", symbol, domain.OrderSideBuy, 2000), now); err != nil {
			t.Fatalf("seed buy: %v", err)
		}
		if _, _, err := e.ledger.ApplyDailySettlement("u1", "2026-03-02", nil, now); err != nil {
			t.Fatalf("seed unlock: %v", err)
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			now = now.Add(time.Second)
			op := rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("op%d", i))

			switch op {
			case 0: // limit buy somewhere in the band
				price := rapid.Int64Range(900, 1100).Draw(t, fmt.Sprintf("buyPrice%d", i))
				qty := rapid.Int64Range(1, 3).Draw(t, fmt.Sprintf("buyQty%d", i)) * 100
				_, _ = e.matcher.Place(ctx, limitOrder("u1", symbol, domain.OrderSideBuy, qty, price), now)
			case 1: // limit sell
				price := rapid.Int64Range(900, 1100).Draw(t, fmt.Sprintf("sellPrice%d", i))
				qty := rapid.Int64Range(1, 3).Draw(t, fmt.Sprintf("sellQty%d", i)) * 100
				_, _ = e.matcher.Place(ctx, limitOrder("u1", symbol, domain.OrderSideSell, qty, price), now)
			case 2: // cancel an arbitrary pending order
				pending := e.orders.Pending()
				if len(pending) > 0 {
					idx := rapid.IntRange(0, len(pending)-1).Draw(t, fmt.Sprintf("cancelIdx%d", i))
					_, _ = e.matcher.Cancel(ctx, "u1", pending[idx].OrderID, now)
				}
			case 3: // move the price and re-check
				price := rapid.Int64Range(900, 1100).Draw(t, fmt.Sprintf("tickPrice%d", i))
				e.setQuote(symbol, price)
				quote, err := e.quotes.Get(ctx, symbol)
				if err != nil {
					t.Fatalf("quote: %v", err)
				}
				e.matcher.RecheckSymbol(ctx, symbol, quote, now)
			}

			checkAccounting(t, e, "u1", symbol)
		}
	})
}

// Property: every order ends in exactly one of the four states, filled
// orders carry their trade, and resolved orders never rest on the book.
func TestProperty_OrderLifecycle(t *testing.T) {
	const symbol = "sh600000"

	rapid.Check(t, func(t *rapid.T) {
		e := newEnv()
		now := propSessionTime
		ctx := context.Background()

		if _, err := e.ledger.Open("u1", "Trader u1", "", testInitialCash); err != nil {
			t.Fatalf("open: %v", err)
		}
		e.setQuote(symbol, 1000)

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			now = now.Add(time.Second)
			price := rapid.Int64Range(850, 1150).Draw(t, fmt.Sprintf("price%d", i)) // may fall out of band
			qty := rapid.Int64Range(0, 3).Draw(t, fmt.Sprintf("qty%d", i)) * 100    // zero is invalid
			kind := domain.OrderKindLimit
			if rapid.Bool().Draw(t, fmt.Sprintf("market%d", i)) {
				kind = domain.OrderKindMarket
			}
			order := &domain.Order{
				AccountID:  "u1",
				Symbol:     symbol,
				Side:       domain.OrderSideBuy,
				Kind:       kind,
				Quantity:   qty,
				LimitPrice: price,
			}
			_, _ = e.matcher.Place(ctx, order, now)
		}

		book := e.books.GetOrCreate(symbol)
		orders, _ := e.orders.ListByAccount("u1", nil, 1, 1000)
		for _, o := range orders {
			switch o.Status {
			case domain.OrderStatusPending:
				if o.ResolvedAt != nil {
					t.Fatalf("pending order %d has resolved_at", o.OrderID)
				}
				if !book.Contains(o.OrderID) {
					t.Fatalf("pending order %d not on book", o.OrderID)
				}
			case domain.OrderStatusFilled:
				if o.Trade == nil || o.ResolvedAt == nil {
					t.Fatalf("filled order %d missing trade or resolved_at", o.OrderID)
				}
				if book.Contains(o.OrderID) {
					t.Fatalf("filled order %d still on book", o.OrderID)
				}
			case domain.OrderStatusCancelled, domain.OrderStatusRejected:
				if o.ResolvedAt == nil {
					t.Fatalf("resolved order %d missing resolved_at", o.OrderID)
				}
				if book.Contains(o.OrderID) {
					t.Fatalf("resolved order %d still on book", o.OrderID)
				}
			default:
				t.Fatalf("order %d in unknown state %q", o.OrderID, o.Status)
			}
			if o.Status == domain.OrderStatusRejected && o.RejectReason == "" {
				t.Fatalf("rejected order %d missing reason", o.OrderID)
			}
		}
	})
}
