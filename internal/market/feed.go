// Package market provides the market-data side of the simulation: quote
// feeds, the TTL quote cache, and the trading calendar.
package market

import (
	"context"

	"github.com/hzfeng/papertrade/internal/domain"
)

// Feed is the upstream quote source. Implementations must be safe for
// concurrent use; all calls honor the context deadline.
type Feed interface {
	// Quote fetches the latest quote for one canonical symbol.
	Quote(ctx context.Context, symbol string) (*domain.Quote, error)

	// Quotes fetches many symbols in one round trip where the source
	// allows. Symbols that fail to parse are absent from the result;
	// only a whole-batch failure returns an error.
	Quotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error)
}
