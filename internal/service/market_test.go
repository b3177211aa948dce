package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
)

func TestMarketQuote_ReturnsQuote(t *testing.T) {
	e := newTestEnv(t)
	e.setQuote("sh600000", 1050)

	q, err := e.marketSvc.Quote(context.Background(), "600000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Symbol != "sh600000" {
		t.Errorf("got symbol %q, want %q", q.Symbol, "sh600000")
	}
	if q.Name != "Test sh600000" {
		t.Errorf("got name %q, want %q", q.Name, "Test sh600000")
	}
	if q.Price != 1050 || q.PrevClose != 1000 {
		t.Errorf("got price %d prev close %d, want 1050 and 1000", q.Price, q.PrevClose)
	}
	if q.LimitUp != 1100 || q.LimitDown != 900 {
		t.Errorf("got band %d/%d, want 1100/900", q.LimitUp, q.LimitDown)
	}
	if q.Suspended {
		t.Error("expected not suspended")
	}
	if q.AsOf.IsZero() {
		t.Error("expected AsOf to be stamped")
	}
}

func TestMarketQuote_InvalidSymbol(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.marketSvc.Quote(context.Background(), "ticker")
	if !errors.Is(err, domain.ErrInvalidSymbol) {
		t.Fatalf("got error %v, want ErrInvalidSymbol", err)
	}
}

func TestMarketQuote_FeedFailure(t *testing.T) {
	e := newTestEnv(t)
	e.feed.fail(errors.New("feed down"))

	_, err := e.marketSvc.Quote(context.Background(), "sh600000")
	if !errors.Is(err, domain.ErrQuoteFetchTimeout) {
		t.Fatalf("got error %v, want ErrQuoteFetchTimeout", err)
	}
}

func TestMarketStatus(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name        string
		now         time.Time
		wantOpen    bool
		wantDay     string
		wantNext    time.Time
	}{
		{
			"during morning session",
			time.Date(2026, 3, 3, 10, 0, 0, 0, loc),
			true,
			"2026-03-03",
			time.Date(2026, 3, 3, 10, 0, 0, 0, loc),
		},
		{
			"before open",
			time.Date(2026, 3, 3, 8, 0, 0, 0, loc),
			false,
			"2026-03-03",
			time.Date(2026, 3, 3, 9, 30, 0, 0, loc),
		},
		{
			"lunch break",
			time.Date(2026, 3, 3, 12, 0, 0, 0, loc),
			false,
			"2026-03-03",
			time.Date(2026, 3, 3, 13, 0, 0, 0, loc),
		},
		{
			"after close",
			time.Date(2026, 3, 3, 15, 30, 0, 0, loc),
			false,
			"2026-03-03",
			time.Date(2026, 3, 4, 9, 30, 0, 0, loc),
		},
		{
			"saturday rolls to monday",
			time.Date(2026, 3, 7, 10, 0, 0, 0, loc),
			false,
			"2026-03-07",
			time.Date(2026, 3, 9, 9, 30, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.marketSvc.now = func() time.Time { return tt.now }

			status := e.marketSvc.Status()
			if status.Open != tt.wantOpen {
				t.Errorf("got open %v, want %v", status.Open, tt.wantOpen)
			}
			if status.TradingDay != tt.wantDay {
				t.Errorf("got trading day %q, want %q", status.TradingDay, tt.wantDay)
			}
			if !status.NextOpen.Equal(tt.wantNext) {
				t.Errorf("got next open %v, want %v", status.NextOpen, tt.wantNext)
			}
		})
	}
}
