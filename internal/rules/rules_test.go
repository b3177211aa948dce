package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
)

// stubCalendar reports a fixed session state.
type stubCalendar struct {
	open bool
}

func (c stubCalendar) IsOpen(time.Time) bool { return c.open }

func newTestEngine(open bool) *Engine {
	// 100-share lots, 3 bps commission with a 5.00 yuan floor,
	// 100.00 yuan minimum buy.
	return NewEngine(stubCalendar{open: open}, 100, 3, 500, 10000)
}

func newTestQuote() *domain.Quote {
	return &domain.Quote{
		Symbol:    "sh600000",
		Name:      "PuFa Bank",
		Price:     1000,
		PrevClose: 1000,
		LimitUp:   1100,
		LimitDown: 900,
		AsOf:      time.Now(),
	}
}

func TestCommission_MinimumFloor(t *testing.T) {
	e := newTestEngine(true)

	// 1000 shares at 10.00 yuan: 3 bps of 10000.00 is 3.00, below the floor.
	if got := e.Commission(1_000_000); got != 500 {
		t.Fatalf("expected minimum fee 500, got %d", got)
	}
}

func TestCommission_Proportional(t *testing.T) {
	e := newTestEngine(true)

	// 10000 shares at 100.00 yuan: 3 bps of 1,000,000.00 is 300.00.
	if got := e.Commission(100_000_000); got != 30_000 {
		t.Fatalf("expected fee 30000, got %d", got)
	}
}

func TestBuyCost(t *testing.T) {
	e := newTestEngine(true)

	// The canonical opening trade: 1000 shares at 10.00 yuan costs
	// 10,000.00 plus the 5.00 minimum fee.
	if got := e.BuyCost(1000, 1000); got != 1_000_500 {
		t.Fatalf("expected 1000500, got %d", got)
	}
}

func TestSellProceeds(t *testing.T) {
	e := newTestEngine(true)

	if got := e.SellProceeds(1000, 1000); got != 999_500 {
		t.Fatalf("expected 999500, got %d", got)
	}
}

func TestCheckPlacement_SessionClosed(t *testing.T) {
	e := newTestEngine(false)
	q := newTestQuote()

	err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindLimit, 100, 1000)
	if !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestCheckPlacement_Suspended(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()
	q.Suspended = true

	err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindLimit, 100, 1000)
	if !errors.Is(err, domain.ErrSymbolSuspended) {
		t.Fatalf("expected ErrSymbolSuspended, got %v", err)
	}
}

func TestCheckPlacement_QuantityMustBeLotMultiple(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()

	for _, qty := range []int64{0, -100, 150, 99} {
		err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindLimit, qty, 1000)
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("qty=%d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestCheckPlacement_LimitPriceOutOfBand(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()

	for _, price := range []int64{1101, 899, 5000} {
		err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindLimit, 100, price)
		if !errors.Is(err, domain.ErrPriceOutOfBand) {
			t.Fatalf("price=%d: expected ErrPriceOutOfBand, got %v", price, err)
		}
	}

	// Band edges themselves are valid limit prices.
	if err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindLimit, 100, 1100); err != nil {
		t.Fatalf("limit-up price should be placeable, got %v", err)
	}
	if err := e.CheckPlacement(time.Now(), q, domain.OrderSideSell, domain.OrderKindLimit, 100, 900); err != nil {
		t.Fatalf("limit-down price should be placeable, got %v", err)
	}
}

func TestCheckPlacement_MarketOrderSkipsBandCheck(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()

	// Market orders carry no limit price; the zero value must not trip
	// the band check.
	if err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindMarket, 100, 0); err != nil {
		t.Fatalf("expected market buy to pass, got %v", err)
	}
}

func TestCheckPlacement_BuyBlockedAtLimitUp(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()
	q.Price = q.LimitUp

	err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindMarket, 100, 0)
	if !errors.Is(err, domain.ErrPriceLimitBlocked) {
		t.Fatalf("expected ErrPriceLimitBlocked, got %v", err)
	}

	// Sells remain free to execute at limit-up.
	if err := e.CheckPlacement(time.Now(), q, domain.OrderSideSell, domain.OrderKindMarket, 100, 0); err != nil {
		t.Fatalf("expected sell at limit-up to pass, got %v", err)
	}
}

func TestCheckPlacement_SellBlockedAtLimitDown(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()
	q.Price = q.LimitDown

	err := e.CheckPlacement(time.Now(), q, domain.OrderSideSell, domain.OrderKindLimit, 100, 900)
	if !errors.Is(err, domain.ErrPriceLimitBlocked) {
		t.Fatalf("expected ErrPriceLimitBlocked, got %v", err)
	}

	// Buys remain free to execute at limit-down.
	if err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindLimit, 100, 900); err != nil {
		t.Fatalf("expected buy at limit-down to pass, got %v", err)
	}
}

func TestCheckPlacement_MinimumBuyValue(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()
	q.Price = 50
	q.LimitUp = 55
	q.LimitDown = 45

	// 100 shares at 0.50 yuan is 50.00 yuan, under the 100.00 minimum.
	err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindLimit, 100, 50)
	if !errors.Is(err, domain.ErrOrderValueTooSmall) {
		t.Fatalf("expected ErrOrderValueTooSmall, got %v", err)
	}

	// 200 shares at 0.50 yuan meets it exactly.
	if err := e.CheckPlacement(time.Now(), q, domain.OrderSideBuy, domain.OrderKindLimit, 200, 50); err != nil {
		t.Fatalf("expected 100.00 yuan buy to pass, got %v", err)
	}
}

func TestCheckPlacement_SellMustCoverCommission(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()
	q.Price = 4
	q.LimitUp = 5
	q.LimitDown = 3

	// 100 shares at 0.04 yuan is 4.00 yuan, under the 5.00 minimum fee.
	err := e.CheckPlacement(time.Now(), q, domain.OrderSideSell, domain.OrderKindLimit, 100, 4)
	if !errors.Is(err, domain.ErrOrderValueTooSmall) {
		t.Fatalf("expected ErrOrderValueTooSmall, got %v", err)
	}
}

func TestFillable(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote() // price 1000, band [900, 1100]

	cases := []struct {
		name  string
		side  domain.OrderSide
		limit int64
		want  bool
	}{
		{"buy crossed", domain.OrderSideBuy, 1000, true},
		{"buy above quote", domain.OrderSideBuy, 1050, true},
		{"buy below quote", domain.OrderSideBuy, 950, false},
		{"sell crossed", domain.OrderSideSell, 1000, true},
		{"sell below quote", domain.OrderSideSell, 950, true},
		{"sell above quote", domain.OrderSideSell, 1050, false},
	}
	for _, tc := range cases {
		if got := e.Fillable(q, tc.side, tc.limit); got != tc.want {
			t.Errorf("%s: Fillable=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFillable_EdgeRule(t *testing.T) {
	e := newTestEngine(true)

	up := newTestQuote()
	up.Price = up.LimitUp
	if e.Fillable(up, domain.OrderSideBuy, up.LimitUp) {
		t.Error("buy must not fill while the quote sits at limit-up")
	}
	if !e.Fillable(up, domain.OrderSideSell, 1000) {
		t.Error("sell should fill at limit-up")
	}

	down := newTestQuote()
	down.Price = down.LimitDown
	if e.Fillable(down, domain.OrderSideSell, down.LimitDown) {
		t.Error("sell must not fill while the quote sits at limit-down")
	}
	if !e.Fillable(down, domain.OrderSideBuy, 1000) {
		t.Error("buy should fill at limit-down")
	}
}

func TestFillable_Suspended(t *testing.T) {
	e := newTestEngine(true)
	q := newTestQuote()
	q.Suspended = true

	if e.Fillable(q, domain.OrderSideBuy, 2000) {
		t.Error("suspended symbol must not fill")
	}
}
