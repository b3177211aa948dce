package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/hzfeng/papertrade/internal/domain"
)

// BookEntry represents a single pending limit order in a symbol's
// re-check index.
type BookEntry struct {
	Price     int64
	CreatedAt time.Time
	OrderID   int64
	Order     *domain.Order
}

// buyLess orders the buy side: price descending, then created_at
// ascending, then order id ascending. Min() returns the buy most
// likely to cross the quote (highest limit, earliest placement), so a
// re-check walk can stop at the first entry below the quote.
func buyLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// sellLess orders the sell side: price ascending, then created_at
// ascending, then order id ascending. Min() returns the sell most
// likely to cross the quote (lowest limit, earliest placement).
func sellLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// OrderBook holds the pending limit orders for a single symbol in two
// B-trees ordered by fill priority, with a secondary index for
// O(log n) removal by order id. Orders never match each other here;
// the trees only decide the re-check walk order against the quote.
type OrderBook struct {
	symbol string
	mu     sync.RWMutex
	buys   *btree.BTreeG[BookEntry]
	sells  *btree.BTreeG[BookEntry]
	index  map[int64]BookEntry // order_id → entry
}

// NewOrderBook creates an empty pending index for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		buys:   btree.NewG[BookEntry](degree, buyLess),
		sells:  btree.NewG[BookEntry](degree, sellLess),
		index:  make(map[int64]BookEntry),
	}
}

// Insert adds a pending order on its side of the book.
func (ob *OrderBook) Insert(o *domain.Order) {
	entry := BookEntry{
		Price:     o.LimitPrice,
		CreatedAt: o.CreatedAt,
		OrderID:   o.OrderID,
		Order:     o,
	}
	if o.Side == domain.OrderSideBuy {
		ob.buys.ReplaceOrInsert(entry)
	} else {
		ob.sells.ReplaceOrInsert(entry)
	}
	ob.index[entry.OrderID] = entry
}

// Remove deletes an order from the book by order id using the
// secondary index. It is a no-op for unknown ids.
func (ob *OrderBook) Remove(orderID int64) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	// Delete is a no-op on the side the entry isn't on.
	ob.buys.Delete(entry)
	ob.sells.Delete(entry)
}

// Contains reports whether an order rests on the book.
func (ob *OrderBook) Contains(orderID int64) bool {
	_, ok := ob.index[orderID]
	return ok
}

// WalkBuys iterates buys in fill priority (highest limit first,
// earliest first within a level). The callback returns true to
// continue, false to stop.
func (ob *OrderBook) WalkBuys(fn func(BookEntry) bool) {
	ob.buys.Ascend(fn)
}

// WalkSells iterates sells in fill priority (lowest limit first,
// earliest first within a level).
func (ob *OrderBook) WalkSells(fn func(BookEntry) bool) {
	ob.sells.Ascend(fn)
}

// BuyCount returns the number of pending buys.
func (ob *OrderBook) BuyCount() int {
	return ob.buys.Len()
}

// SellCount returns the number of pending sells.
func (ob *OrderBook) SellCount() int {
	return ob.sells.Len()
}

// Len returns the total number of pending orders.
func (ob *OrderBook) Len() int {
	return len(ob.index)
}

// BookManager is a thread-safe map of symbol → OrderBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the book for the given symbol, creating one if
// it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol)
	bm.books[symbol] = book
	return book
}

// Symbols returns the symbols that currently have pending orders,
// sorted for deterministic scheduling.
func (bm *BookManager) Symbols() []string {
	bm.mu.RLock()
	books := make([]*OrderBook, 0, len(bm.books))
	for _, book := range bm.books {
		books = append(books, book)
	}
	bm.mu.RUnlock()

	symbols := make([]string, 0, len(books))
	for _, book := range books {
		book.mu.RLock()
		if len(book.index) > 0 {
			symbols = append(symbols, book.symbol)
		}
		book.mu.RUnlock()
	}
	sort.Strings(symbols)
	return symbols
}

// PendingCount returns the total number of pending orders across all
// symbols.
func (bm *BookManager) PendingCount() int {
	bm.mu.RLock()
	books := make([]*OrderBook, 0, len(bm.books))
	for _, book := range bm.books {
		books = append(books, book)
	}
	bm.mu.RUnlock()

	total := 0
	for _, book := range books {
		book.mu.RLock()
		total += len(book.index)
		book.mu.RUnlock()
	}
	return total
}
