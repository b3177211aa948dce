package service

import (
	"context"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/market"
)

// MarketService exposes read-only market data: quotes and the session
// state of the trading calendar.
type MarketService struct {
	quotes *market.QuoteCache
	cal    *market.Calendar
	now    func() time.Time
}

// NewMarketService creates a MarketService.
func NewMarketService(quotes *market.QuoteCache, cal *market.Calendar) *MarketService {
	return &MarketService{
		quotes: quotes,
		cal:    cal,
		now:    time.Now,
	}
}

// QuoteResponse is a market quote view. Prices are in cents.
type QuoteResponse struct {
	Symbol    string
	Name      string
	Price     int64
	PrevClose int64
	LimitUp   int64
	LimitDown int64
	Suspended bool
	AsOf      time.Time
}

// Quote returns the freshest quote for a symbol, fetching through the
// cache when the stored entry is stale.
func (s *MarketService) Quote(ctx context.Context, rawSymbol string) (*QuoteResponse, error) {
	symbol, err := domain.NormalizeSymbol(rawSymbol)
	if err != nil {
		return nil, err
	}

	q, err := s.quotes.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return &QuoteResponse{
		Symbol:    q.Symbol,
		Name:      q.Name,
		Price:     q.Price,
		PrevClose: q.PrevClose,
		LimitUp:   q.LimitUp,
		LimitDown: q.LimitDown,
		Suspended: q.Suspended,
		AsOf:      q.AsOf,
	}, nil
}

// StatusResponse describes the trading session state. NextOpen is the
// current instant while a session is open.
type StatusResponse struct {
	Open       bool
	TradingDay string
	NextOpen   time.Time
}

// Status reports whether a session is open, the current trading day,
// and when the next session opens.
func (s *MarketService) Status() *StatusResponse {
	now := s.now()
	return &StatusResponse{
		Open:       s.cal.IsOpen(now),
		TradingDay: s.cal.TradingDay(now),
		NextOpen:   s.cal.NextOpen(now),
	}
}
