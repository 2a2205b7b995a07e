package broker

import (
	"context"
	"strings"
	"testing"
)

func TestSimulated_LedgerRoundTrip(t *testing.T) {
	s := NewSimulated(10000, nil)
	ctx := context.Background()

	eq, err := s.AccountEquity(ctx)
	if err != nil || eq != 10000 {
		t.Fatalf("expected equity=10000, got %f (err=%v)", eq, err)
	}

	if qty, _ := s.PositionQty(ctx, "AAPL"); qty != 0 {
		t.Fatalf("expected flat position, got %f", qty)
	}

	res := s.PlaceOrder(ctx, "AAPL", SideBuy, 50, 100, 98, 104)
	if !res.OK {
		t.Fatalf("expected fill, got %+v", res)
	}
	if res.Status != "filled" || res.ID == "" {
		t.Errorf("unexpected result: %+v", res)
	}

	if qty, _ := s.PositionQty(ctx, "AAPL"); qty != 50 {
		t.Errorf("expected position=50, got %f", qty)
	}

	res = s.PlaceOrder(ctx, "AAPL", SideSell, 50, 101, 0, 0)
	if !res.OK {
		t.Fatalf("expected fill, got %+v", res)
	}
	if qty, _ := s.PositionQty(ctx, "AAPL"); qty != 0 {
		t.Errorf("expected flat after round trip, got %f", qty)
	}
}

func TestSimulated_ShortLedger(t *testing.T) {
	s := NewSimulated(10000, nil)
	ctx := context.Background()

	s.PlaceOrder(ctx, "MSFT", SideSell, 10, 300, 0, 0)
	if qty, _ := s.PositionQty(ctx, "MSFT"); qty != -10 {
		t.Errorf("expected short position -10, got %f", qty)
	}
}

func TestSimulated_NoOpenOrders(t *testing.T) {
	s := NewSimulated(10000, nil)

	has, err := s.HasOpenOrders(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("HasOpenOrders returned error: %v", err)
	}
	if has {
		t.Errorf("simulated broker must never report open orders")
	}
}

func TestSimulated_PlaceBracketValidatesPrices(t *testing.T) {
	s := NewSimulated(10000, nil)
	ctx := context.Background()

	res := s.PlaceBracket(ctx, "AAPL", SideBuy, 50, 100, 0.01, 0.005, "day")
	if !res.OK {
		t.Fatalf("expected bracket fill, got %+v", res)
	}
	if qty, _ := s.PositionQty(ctx, "AAPL"); qty != 50 {
		t.Errorf("expected position=50, got %f", qty)
	}

	res = s.PlaceBracket(ctx, "AAPL", SideBuy, 50, 0, 0.01, 0.005, "day")
	if res.OK {
		t.Fatalf("expected validation failure for zero entry")
	}
	if !strings.Contains(res.Err, "invalid bracket prices") {
		t.Errorf("expected invalid bracket error, got %q", res.Err)
	}
	// 校验失败不能触碰账本
	if qty, _ := s.PositionQty(ctx, "AAPL"); qty != 50 {
		t.Errorf("failed bracket must not change ledger, got %f", qty)
	}
}

func TestSimulated_OrderIDsMonotonic(t *testing.T) {
	s := NewSimulated(10000, nil)
	ctx := context.Background()

	first := s.PlaceOrder(ctx, "AAPL", SideBuy, 1, 100, 0, 0)
	second := s.PlaceOrder(ctx, "AAPL", SideBuy, 1, 100, 0, 0)
	if first.ID == second.ID {
		t.Errorf("expected distinct order ids, got %s twice", first.ID)
	}
}
