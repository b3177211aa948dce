package engine

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/hzfeng/papertrade/internal/domain"
)

// genBookOrder generates a pending limit order with a constrained price
// and a timestamp range small enough to force tie-breaking.
func genBookOrder(id int64, side domain.OrderSide) *rapid.Generator[*domain.Order] {
	return rapid.Custom(func(t *rapid.T) *domain.Order {
		price := rapid.Int64Range(900, 1100).Draw(t, "price")
		secOffset := rapid.IntRange(0, 20).Draw(t, "secOffset")
		createdAt := time.Date(2026, 3, 3, 10, 0, secOffset, 0, time.UTC)
		return makeOrder(id, side, price, createdAt)
	})
}

// Property: walking the buy side always yields price descending, then
// created_at ascending, then order id ascending.
func TestProperty_BuyWalkOrdering(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numOrders")
		book := NewOrderBook("sh600000")

		for i := 0; i < n; i++ {
			o := genBookOrder(int64(i+1), domain.OrderSideBuy).Draw(t, fmt.Sprintf("buy-%d", i))
			book.Insert(o)
		}

		var prev *BookEntry
		book.WalkBuys(func(e BookEntry) bool {
			if prev != nil {
				if e.Price > prev.Price {
					t.Fatalf("buy prices must descend, got %d after %d", e.Price, prev.Price)
				}
				if e.Price == prev.Price {
					if e.CreatedAt.Before(prev.CreatedAt) {
						t.Fatalf("equal price %d: created_at must ascend, got %v after %v",
							e.Price, e.CreatedAt, prev.CreatedAt)
					}
					if e.CreatedAt.Equal(prev.CreatedAt) && e.OrderID < prev.OrderID {
						t.Fatalf("equal price and time: order id must ascend, got %d after %d",
							e.OrderID, prev.OrderID)
					}
				}
			}
			cp := e
			prev = &cp
			return true
		})
	})
}

// Property: walking the sell side always yields price ascending, then
// created_at ascending, then order id ascending.
func TestProperty_SellWalkOrdering(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numOrders")
		book := NewOrderBook("sh600000")

		for i := 0; i < n; i++ {
			o := genBookOrder(int64(i+1), domain.OrderSideSell).Draw(t, fmt.Sprintf("sell-%d", i))
			book.Insert(o)
		}

		var prev *BookEntry
		book.WalkSells(func(e BookEntry) bool {
			if prev != nil {
				if e.Price < prev.Price {
					t.Fatalf("sell prices must ascend, got %d after %d", e.Price, prev.Price)
				}
				if e.Price == prev.Price {
					if e.CreatedAt.Before(prev.CreatedAt) {
						t.Fatalf("equal price %d: created_at must ascend, got %v after %v",
							e.Price, e.CreatedAt, prev.CreatedAt)
					}
					if e.CreatedAt.Equal(prev.CreatedAt) && e.OrderID < prev.OrderID {
						t.Fatalf("equal price and time: order id must ascend, got %d after %d",
							e.OrderID, prev.OrderID)
					}
				}
			}
			cp := e
			prev = &cp
			return true
		})
	})
}

// Property: after any insert/remove sequence the index, side trees and
// Contains all agree.
func TestProperty_InsertRemoveConsistency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook("sh600000")
		alive := make(map[int64]domain.OrderSide)
		nextID := int64(1)

		steps := rapid.IntRange(1, 80).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(alive) == 0 || rapid.Bool().Draw(t, "insert") {
				side := domain.OrderSideBuy
				if rapid.Bool().Draw(t, "sell") {
					side = domain.OrderSideSell
				}
				o := genBookOrder(nextID, side).Draw(t, fmt.Sprintf("order-%d", nextID))
				book.Insert(o)
				alive[nextID] = side
				nextID++
			} else {
				// Remove an arbitrary live order.
				ids := make([]int64, 0, len(alive))
				for id := range alive {
					ids = append(ids, id)
				}
				id := rapid.SampledFrom(ids).Draw(t, "removeID")
				book.Remove(id)
				delete(alive, id)
			}
		}

		if book.Len() != len(alive) {
			t.Fatalf("index size %d, expected %d", book.Len(), len(alive))
		}
		buys, sells := 0, 0
		for id, side := range alive {
			if !book.Contains(id) {
				t.Fatalf("order %d missing from book", id)
			}
			if side == domain.OrderSideBuy {
				buys++
			} else {
				sells++
			}
		}
		if book.BuyCount() != buys || book.SellCount() != sells {
			t.Fatalf("side counts %d/%d, expected %d/%d",
				book.BuyCount(), book.SellCount(), buys, sells)
		}
	})
}
