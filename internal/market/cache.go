package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
)

// retryBackoff is the pause before the single retry of a failed
// synchronous fetch.
const retryBackoff = 200 * time.Millisecond

// QuoteCache memoizes feed quotes with a TTL so matching decisions
// never hit the upstream more than once per symbol per TTL window.
// Reads are lock-free for concurrent readers; a stale symbol is
// refreshed synchronously by exactly one caller at a time.
type QuoteCache struct {
	feed    Feed
	ttl     time.Duration
	timeout time.Duration

	mu      sync.RWMutex
	entries map[string]*domain.Quote

	flightMu sync.Mutex
	flight   map[string]*sync.Mutex // per-symbol refresh serialization
}

// NewQuoteCache creates a cache over feed. ttl bounds staleness;
// timeout bounds each upstream call.
func NewQuoteCache(feed Feed, ttl, timeout time.Duration) *QuoteCache {
	return &QuoteCache{
		feed:    feed,
		ttl:     ttl,
		timeout: timeout,
		entries: make(map[string]*domain.Quote),
		flight:  make(map[string]*sync.Mutex),
	}
}

// Get returns a quote no staler than the TTL, fetching from the feed
// when needed. Fetch failures surface as ErrQuoteFetchTimeout after one
// bounded retry; the previous cached value, if any, stays in place.
func (c *QuoteCache) Get(ctx context.Context, symbol string) (*domain.Quote, error) {
	now := time.Now()

	c.mu.RLock()
	q, ok := c.entries[symbol]
	c.mu.RUnlock()
	if ok && c.fresh(q, now) {
		return snapshot(q), nil
	}

	// Serialize refreshes per symbol so a thundering herd performs one
	// upstream call.
	lock := c.flightLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while we waited.
	c.mu.RLock()
	q, ok = c.entries[symbol]
	c.mu.RUnlock()
	if ok && c.fresh(q, time.Now()) {
		return snapshot(q), nil
	}

	fetched, err := c.fetchWithRetry(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.store(fetched)
	return snapshot(fetched), nil
}

// RefreshBatch fetches all symbols in one feed round trip and caches
// the results. Symbols missing from the feed response are absent from
// the returned map; a whole-batch failure returns ErrQuoteFetchTimeout.
func (c *QuoteCache) RefreshBatch(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]*domain.Quote{}, nil
	}

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	quotes, err := c.feed.Quotes(fctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuoteFetchTimeout, err)
	}

	out := make(map[string]*domain.Quote, len(quotes))
	for symbol, q := range quotes {
		c.store(q)
		out[symbol] = snapshot(q)
	}
	return out, nil
}

// Peek returns the last cached quote regardless of freshness. Used
// where a stale price beats no price (mark-to-market fallback).
func (c *QuoteCache) Peek(symbol string) (*domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.entries[symbol]
	if !ok {
		return nil, false
	}
	return snapshot(q), true
}

// PurgeExpired drops entries staler than the TTL. The settlement job
// runs this once per day so symbols nobody trades anymore do not pin
// memory.
func (c *QuoteCache) PurgeExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for symbol, q := range c.entries {
		if !c.fresh(q, now) {
			delete(c.entries, symbol)
			purged++
		}
	}
	return purged
}

// Len returns the number of cached entries.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QuoteCache) fresh(q *domain.Quote, now time.Time) bool {
	return now.Sub(q.AsOf) < c.ttl
}

func (c *QuoteCache) store(q *domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Last write wins; an older snapshot never replaces a newer one.
	if cur, ok := c.entries[q.Symbol]; ok && cur.AsOf.After(q.AsOf) {
		return
	}
	c.entries[q.Symbol] = q
}

func (c *QuoteCache) flightLock(symbol string) *sync.Mutex {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	lock, ok := c.flight[symbol]
	if !ok {
		lock = &sync.Mutex{}
		c.flight[symbol] = lock
	}
	return lock
}

// fetchWithRetry performs one upstream call plus one retry after a
// short backoff, each bounded by the cache timeout.
func (c *QuoteCache) fetchWithRetry(ctx context.Context, symbol string) (*domain.Quote, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrQuoteFetchTimeout, ctx.Err())
			case <-time.After(retryBackoff):
			}
		}

		fctx, cancel := context.WithTimeout(ctx, c.timeout)
		q, err := c.feed.Quote(fctx, symbol)
		cancel()
		if err == nil {
			return q, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrQuoteFetchTimeout, lastErr)
}

// snapshot copies a quote so callers never share cache memory.
func snapshot(q *domain.Quote) *domain.Quote {
	cp := *q
	return &cp
}
