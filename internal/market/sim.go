package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
)

// SimFeed is a self-contained random-walk feed for local runs and
// tests: no network, deterministic under a fixed seed. Prices drift up
// to ±2% per fetch and stay clamped inside the daily band derived from
// the starting price.
type SimFeed struct {
	mu     sync.Mutex
	rng    *rand.Rand
	states map[string]*simState
}

type simState struct {
	name      string
	prevClose int64
	price     int64
	suspended bool
}

// NewSimFeed creates a SimFeed. Symbols listed in prices start at the
// given cent price; unknown symbols get a pseudo-random start derived
// from the shared rng.
func NewSimFeed(seed int64, prices map[string]int64) *SimFeed {
	f := &SimFeed{
		rng:    rand.New(rand.NewSource(seed)),
		states: make(map[string]*simState),
	}
	for symbol, price := range prices {
		f.states[symbol] = &simState{name: "SIM " + symbol, prevClose: price, price: price}
	}
	return f
}

// Suspend toggles the suspended flag for a symbol, creating it at a
// random price if unseen.
func (f *SimFeed) Suspend(symbol string, suspended bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state(symbol).suspended = suspended
}

// SetPrice pins a symbol's current price. The previous close (and so
// the band) is untouched.
func (f *SimFeed) SetPrice(symbol string, price int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state(symbol).price = price
}

// Quote implements Feed.
func (f *SimFeed) Quote(_ context.Context, symbol string) (*domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step(symbol), nil
}

// Quotes implements Feed.
func (f *SimFeed) Quotes(_ context.Context, symbols []string) (map[string]*domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	quotes := make(map[string]*domain.Quote, len(symbols))
	for _, symbol := range symbols {
		quotes[symbol] = f.step(symbol)
	}
	return quotes, nil
}

// state returns the walk state for symbol, seeding one if needed.
// Callers hold f.mu.
func (f *SimFeed) state(symbol string) *simState {
	st, ok := f.states[symbol]
	if !ok {
		start := int64(500 + f.rng.Intn(9500)) // 5.00 – 100.00
		st = &simState{name: "SIM " + symbol, prevClose: start, price: start}
		f.states[symbol] = st
	}
	return st
}

// step advances the walk one tick and snapshots a quote.
// Callers hold f.mu.
func (f *SimFeed) step(symbol string) *domain.Quote {
	st := f.state(symbol)

	limitUp, limitDown := domain.ComputeBand(st.prevClose, domain.BandRatioPct(symbol, st.name))

	if !st.suspended {
		drift := int64(float64(st.price) * (f.rng.Float64() - 0.5) * 0.04)
		st.price += drift
		if st.price > limitUp {
			st.price = limitUp
		}
		if st.price < limitDown {
			st.price = limitDown
		}
	}

	return &domain.Quote{
		Symbol:    symbol,
		Name:      st.name,
		Price:     st.price,
		PrevClose: st.prevClose,
		LimitUp:   limitUp,
		LimitDown: limitDown,
		Suspended: st.suspended,
		AsOf:      time.Now(),
	}
}
