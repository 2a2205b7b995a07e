package backtest

import (
	"math"
	"testing"
)

func TestSimulator_LongTakeProfitExit(t *testing.T) {
	s := NewSimulator(10000)

	s.Open(10, 100, 95, 110, false)
	if s.PositionQty() != 10 {
		t.Fatalf("expected qty=10, got %f", s.PositionQty())
	}

	// 未触发止盈止损
	s.Advance(96, 105, 104)
	if s.PositionQty() != 10 {
		t.Fatalf("position must survive bar inside bracket, got %f", s.PositionQty())
	}
	if eq := s.Equity(104); math.Abs(eq-10040) > 1e-9 {
		t.Errorf("expected marked equity=10040, got %f", eq)
	}

	// 高点穿过止盈价，按止盈价离场
	s.Advance(103, 111, 108)
	if s.PositionQty() != 0 {
		t.Fatalf("expected take-profit exit, got qty=%f", s.PositionQty())
	}
	if eq := s.Equity(108); math.Abs(eq-10100) > 1e-9 {
		t.Errorf("expected realized equity=10100, got %f", eq)
	}
	if s.TradeCount() != 2 {
		t.Errorf("expected 2 trades (open+close), got %d", s.TradeCount())
	}
}

func TestSimulator_LongStopLossExit(t *testing.T) {
	s := NewSimulator(10000)

	s.Open(10, 100, 95, 110, false)
	s.Advance(94, 101, 96)

	if s.PositionQty() != 0 {
		t.Fatalf("expected stop-loss exit, got qty=%f", s.PositionQty())
	}
	if eq := s.Equity(96); math.Abs(eq-9950) > 1e-9 {
		t.Errorf("expected equity=9950 after stop at 95, got %f", eq)
	}
}

func TestSimulator_StopTakesPriorityOverTake(t *testing.T) {
	s := NewSimulator(10000)

	s.Open(10, 100, 95, 110, false)
	// 同一根K线同时覆盖止损与止盈，保守按止损处理
	s.Advance(94, 111, 100)

	if eq := s.Equity(100); math.Abs(eq-9950) > 1e-9 {
		t.Errorf("expected conservative stop exit, equity=%f", eq)
	}
}

func TestSimulator_ShortBracketExit(t *testing.T) {
	s := NewSimulator(10000)

	// 空头：止损在上方，止盈在下方
	s.Open(10, 100, 105, 90, true)
	if s.PositionQty() != -10 {
		t.Fatalf("expected qty=-10, got %f", s.PositionQty())
	}

	s.Advance(89, 99, 92)
	if s.PositionQty() != 0 {
		t.Fatalf("expected short take-profit exit, got qty=%f", s.PositionQty())
	}
	if eq := s.Equity(92); math.Abs(eq-10100) > 1e-9 {
		t.Errorf("expected equity=10100 after covering at 90, got %f", eq)
	}
}

func TestSimulator_EquityHistoryGrowsPerBar(t *testing.T) {
	s := NewSimulator(10000)

	s.Advance(99, 101, 100)
	s.Advance(100, 102, 101)

	if got := len(s.EquityHistory()); got != 3 {
		t.Errorf("expected initial point plus one per bar, got %d", got)
	}
	if got := len(s.ReturnHistory()); got != 2 {
		t.Errorf("expected one return per bar, got %d", got)
	}
}

func TestCalculateMetrics(t *testing.T) {
	equity := []float64{10000, 11000, 9900, 10450}
	returns := []float64{0.10, -0.10, 0.0556}

	m := calculateMetrics(equity, returns)

	if math.Abs(m.TotalReturn-0.045) > 1e-9 {
		t.Errorf("expected total return=0.045, got %f", m.TotalReturn)
	}
	if math.Abs(m.MaxDrawdown-0.1) > 1e-9 {
		t.Errorf("expected max drawdown=0.1, got %f", m.MaxDrawdown)
	}
	if m.SharpeRatio == 0 {
		t.Errorf("expected non-zero sharpe ratio")
	}
}

func TestCalculateMetrics_Empty(t *testing.T) {
	m := calculateMetrics(nil, nil)
	if m != (Metrics{}) {
		t.Errorf("expected zero metrics, got %+v", m)
	}
}
