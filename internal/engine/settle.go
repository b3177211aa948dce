package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/hzfeng/papertrade/internal/archive"
	"github.com/hzfeng/papertrade/internal/ledger"
	"github.com/hzfeng/papertrade/internal/market"
)

// Settler runs the daily maintenance pass: promote T+1 locked shares to
// available, mark positions to the latest quotes and drop stale cache
// entries. The ledger records the applied trading day per account, so a
// second run on the same boundary is a no-op.
type Settler struct {
	at      time.Duration // offset from exchange-local midnight
	ledger  *ledger.Ledger
	quotes  *market.QuoteCache
	cal     *market.Calendar
	archive archive.Archive
	logger  *slog.Logger
}

// NewSettler creates a Settler. archive may be nil.
func NewSettler(
	at time.Duration,
	ldg *ledger.Ledger,
	quotes *market.QuoteCache,
	cal *market.Calendar,
	arch archive.Archive,
	logger *slog.Logger,
) *Settler {
	return &Settler{
		at:      at,
		ledger:  ldg,
		quotes:  quotes,
		cal:     cal,
		archive: arch,
		logger:  logger,
	}
}

// Start launches a background goroutine that fires at the configured
// boundary every day. It stops when ctx is cancelled.
func (s *Settler) Start(ctx context.Context) {
	go func() {
		for {
			now := time.Now().In(s.cal.Location())
			timer := time.NewTimer(s.nextRun(now).Sub(now))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case t := <-timer.C:
				s.RunOnce(ctx, t.In(s.cal.Location()))
			}
		}
	}()
}

// nextRun returns the next boundary strictly after now.
func (s *Settler) nextRun(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cal.Location())
	next := day.Add(s.at)
	if !next.After(now) {
		next = day.AddDate(0, 0, 1).Add(s.at)
	}
	return next
}

// RunOnce applies the settlement pass for the trading day containing now
// and returns how many accounts changed. The quote refresh is
// best-effort: when it fails the T+1 unlock still runs and positions
// keep their previous marks.
func (s *Settler) RunOnce(ctx context.Context, now time.Time) int {
	day := s.cal.TradingDay(now)

	marks := make(map[string]int64)
	symbols := s.ledger.HeldSymbols()
	if len(symbols) > 0 {
		quotes, err := s.quotes.RefreshBatch(ctx, symbols)
		if err != nil {
			s.logger.Warn("settlement quote refresh failed, keeping previous marks", "error", err)
		}
		for symbol, q := range quotes {
			if q.Price > 0 {
				marks[symbol] = q.Price
			}
		}
	}

	settled := 0
	for _, accountID := range s.ledger.AccountIDs() {
		changed, state, err := s.ledger.ApplyDailySettlement(accountID, day, marks, now)
		if err != nil {
			s.logger.Warn("settlement skipped account", "account_id", accountID, "error", err)
			continue
		}
		if !changed {
			continue
		}
		settled++
		if s.archive != nil {
			if err := s.archive.SaveAccount(ctx, state); err != nil {
				s.logger.Warn("archive account write failed", "account_id", accountID, "error", err)
			}
		}
	}

	purged := s.quotes.PurgeExpired(now)
	s.logger.Info("settlement pass complete",
		"trading_day", day, "accounts", settled, "marked_symbols", len(marks), "purged_quotes", purged)
	return settled
}
