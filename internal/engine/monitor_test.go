package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
)

func newTestMonitor(e *testEnv) *Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMonitor(15*time.Second, e.books, e.matcher, e.quotes, e.cal, logger)
}

func TestMonitorTick_FillsCrossedRestingOrders(t *testing.T) {
	e := newTestEnv(t)
	now := sessionTime(t)
	e.open(t, "u1", testInitialCash)
	e.setQuote("sh600000", 1000)

	order, err := e.matcher.Place(context.Background(), limitOrder("u1", "sh600000", domain.OrderSideBuy, 1000, 950), now)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	e.setQuote("sh600000", 940)
	mon := newTestMonitor(e)
	if filled := mon.tick(context.Background(), now.Add(15*time.Second)); filled != 1 {
		t.Fatalf("expected 1 fill, got %d", filled)
	}

	got, err := e.orders.Get(order.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != domain.OrderStatusFilled {
		t.Errorf("expected filled, got %s", got.Status)
	}
	if got.Trade.Price != 950 {
		t.Errorf("expected fill at limit 950, got %d", got.Trade.Price)
	}
}

func TestMonitorTick_OutsideSessionDoesNothing(t *testing.T) {
	e := newTestEnv(t)
	now := sessionTime(t)
	e.open(t, "u1", testInitialCash)
	e.setQuote("sh600000", 1000)

	if _, err := e.matcher.Place(context.Background(), limitOrder("u1", "sh600000", domain.OrderSideBuy, 1000, 950), now); err != nil {
		t.Fatalf("place: %v", err)
	}
	e.setQuote("sh600000", 940)

	mon := newTestMonitor(e)
	calls := e.feed.callCount()
	evening := now.Add(8 * time.Hour) // 18:00
	if filled := mon.tick(context.Background(), evening); filled != 0 {
		t.Fatalf("expected no fills outside the session, got %d", filled)
	}
	if e.feed.callCount() != calls {
		t.Error("expected no feed traffic outside the session")
	}
	if e.books.GetOrCreate("sh600000").BuyCount() != 1 {
		t.Error("expected order still resting")
	}
}

func TestMonitorTick_NoRestingOrdersSkipsFetch(t *testing.T) {
	e := newTestEnv(t)
	mon := newTestMonitor(e)

	if filled := mon.tick(context.Background(), sessionTime(t)); filled != 0 {
		t.Fatalf("expected 0 fills, got %d", filled)
	}
	if e.feed.callCount() != 0 {
		t.Errorf("expected no feed calls with an empty book, got %d", e.feed.callCount())
	}
}

func TestMonitorTick_BatchFailureLeavesBook(t *testing.T) {
	e := newTestEnv(t)
	now := sessionTime(t)
	e.open(t, "u1", testInitialCash)
	e.setQuote("sh600000", 1000)

	if _, err := e.matcher.Place(context.Background(), limitOrder("u1", "sh600000", domain.OrderSideBuy, 1000, 950), now); err != nil {
		t.Fatalf("place: %v", err)
	}
	e.feed.fail(errors.New("upstream down"))

	mon := newTestMonitor(e)
	if filled := mon.tick(context.Background(), now.Add(15*time.Second)); filled != 0 {
		t.Fatalf("expected 0 fills on batch failure, got %d", filled)
	}
	if e.books.GetOrCreate("sh600000").BuyCount() != 1 {
		t.Error("expected order untouched after a failed refresh")
	}
}

func TestMonitorTick_MissingSymbolIsolated(t *testing.T) {
	e := newTestEnv(t)
	now := sessionTime(t)
	e.open(t, "u1", testInitialCash)
	e.setQuote("sh600000", 1000)
	e.setQuote("sz000001", 1000)

	first, err := e.matcher.Place(context.Background(), limitOrder("u1", "sh600000", domain.OrderSideBuy, 1000, 950), now)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	second, err := e.matcher.Place(context.Background(), limitOrder("u1", "sz000001", domain.OrderSideBuy, 1000, 950), now)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	// One symbol drops out of the feed response; the other crosses.
	e.setQuote("sh600000", 940)
	e.feed.remove("sz000001")

	mon := newTestMonitor(e)
	if filled := mon.tick(context.Background(), now.Add(15*time.Second)); filled != 1 {
		t.Fatalf("expected 1 fill, got %d", filled)
	}

	got, _ := e.orders.Get(first.OrderID)
	if got.Status != domain.OrderStatusFilled {
		t.Errorf("expected sh600000 order filled, got %s", got.Status)
	}
	still, _ := e.orders.Get(second.OrderID)
	if still.Status != domain.OrderStatusPending {
		t.Errorf("expected sz000001 order still pending, got %s", still.Status)
	}
}

func TestMonitorStart_StopsOnCancel(t *testing.T) {
	e := newTestEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mon := NewMonitor(time.Millisecond, e.books, e.matcher, e.quotes, e.cal, logger)

	ctx, cancel := context.WithCancel(context.Background())
	mon.Start(ctx)
	cancel()
	// The loop exits on its next select; nothing to assert beyond not
	// hanging or panicking.
	time.Sleep(5 * time.Millisecond)
}
