package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/hzfeng/papertrade/internal/market"
)

// Monitor periodically refreshes quotes for every symbol holding resting
// limit orders and asks the matcher to re-check them. One goroutine
// consumes the ticker, so passes never overlap: time.Ticker drops ticks
// that fire while the previous pass is still running.
type Monitor struct {
	interval time.Duration
	books    *BookManager
	matcher  *Matcher
	quotes   *market.QuoteCache
	cal      *market.Calendar
	logger   *slog.Logger
}

// NewMonitor creates a Monitor with the given dependencies.
func NewMonitor(
	interval time.Duration,
	books *BookManager,
	matcher *Matcher,
	quotes *market.QuoteCache,
	cal *market.Calendar,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		interval: interval,
		books:    books,
		matcher:  matcher,
		quotes:   quotes,
		cal:      cal,
		logger:   logger,
	}
}

// Start launches a background goroutine that runs one pass per interval.
// It stops when ctx is cancelled.
func (mo *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(mo.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				mo.tick(ctx, t)
			}
		}
	}()
}

// tick runs a single monitoring pass and returns the number of resting
// orders it filled. Outside trading hours the pass is a no-op; resting
// orders stay on the book untouched. One batch fetch covers every
// watched symbol; a symbol missing from the batch is skipped this pass
// so one bad upstream line never stalls the rest.
func (mo *Monitor) tick(ctx context.Context, now time.Time) int {
	if !mo.cal.IsOpen(now) {
		return 0
	}

	symbols := mo.books.Symbols()
	if len(symbols) == 0 {
		return 0
	}

	quotes, err := mo.quotes.RefreshBatch(ctx, symbols)
	if err != nil {
		mo.logger.Warn("quote refresh failed, pass skipped", "symbols", len(symbols), "error", err)
		return 0
	}

	filled := 0
	for _, symbol := range symbols {
		q, ok := quotes[symbol]
		if !ok {
			mo.logger.Warn("quote missing from batch", "symbol", symbol)
			continue
		}
		filled += mo.matcher.RecheckSymbol(ctx, symbol, q, now)
	}
	if filled > 0 {
		mo.logger.Info("resting orders filled on re-check", "count", filled, "symbols", len(symbols))
	}
	return filled
}
