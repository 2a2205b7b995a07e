package policy

import (
	"math"
	"strings"
	"testing"

	"trading-bot/internal/config"
	"trading-bot/internal/indicator"
)

func defaultPolicyConfig() config.PolicyConfig {
	return config.PolicyConfig{
		RSIBuy:       55,
		RSISell:      46,
		MACDHistBuy:  0,
		MACDHistSell: 0,
		MinScore:     0.10,
		MACDScale:    0.08,
	}
}

func TestDecide_BuySignal(t *testing.T) {
	p := New(defaultPolicyConfig())

	got := p.Decide(indicator.Result{
		RSI:  65,
		MACD: indicator.MACDResult{Histogram: 0.08},
	})

	if got.Side != SideBuy {
		t.Fatalf("expected buy, got %s (score=%f)", got.Side, got.Score)
	}
	// rsi part: (65-55)/15 = 0.667; macd part: 0.08/0.08 = 1.0
	want := math.Round((0.7*(10.0/15.0)+0.3*1.0)*1000) / 1000
	if got.Score != want {
		t.Errorf("expected score=%f, got %f", want, got.Score)
	}
	if !strings.Contains(got.Reason, "RSI=65.0") {
		t.Errorf("expected reason to mention RSI, got %q", got.Reason)
	}
}

func TestDecide_SellSignal(t *testing.T) {
	p := New(defaultPolicyConfig())

	got := p.Decide(indicator.Result{
		RSI:  35,
		MACD: indicator.MACDResult{Histogram: -0.10},
	})

	if got.Side != SideSell {
		t.Fatalf("expected sell, got %s (score=%f)", got.Side, got.Score)
	}
	if got.Score <= 0 || got.Score > 1 {
		t.Errorf("score out of range: %f", got.Score)
	}
}

func TestDecide_HoldWhenNeutral(t *testing.T) {
	p := New(defaultPolicyConfig())

	got := p.Decide(indicator.Result{
		RSI:  50,
		MACD: indicator.MACDResult{Histogram: 0},
	})

	if got.Side != SideHold {
		t.Fatalf("expected hold, got %s (score=%f)", got.Side, got.Score)
	}
	if got.Score != 0 {
		t.Errorf("expected zero score on hold, got %f", got.Score)
	}
}

func TestDecide_BelowMinScoreHolds(t *testing.T) {
	cfg := defaultPolicyConfig()
	cfg.MinScore = 0.5
	p := New(cfg)

	got := p.Decide(indicator.Result{
		RSI:  56,
		MACD: indicator.MACDResult{Histogram: 0.001},
	})

	if got.Side != SideHold {
		t.Fatalf("expected hold below min score, got %s (score=%f)", got.Side, got.Score)
	}
}

func TestDecide_NaNInputsTreatedAsZero(t *testing.T) {
	p := New(defaultPolicyConfig())

	got := p.Decide(indicator.Result{
		RSI:  math.NaN(),
		MACD: indicator.MACDResult{Histogram: math.NaN()},
	})

	// RSI=0 落在卖出区间
	if got.Side != SideSell {
		t.Fatalf("expected sell with NaN treated as zero, got %s", got.Side)
	}
	if math.IsNaN(got.Score) {
		t.Errorf("score must not be NaN")
	}
}

func TestDecide_ScoreAlwaysClipped(t *testing.T) {
	p := New(defaultPolicyConfig())

	got := p.Decide(indicator.Result{
		RSI:  99,
		MACD: indicator.MACDResult{Histogram: 10},
	})

	if got.Side != SideBuy {
		t.Fatalf("expected buy, got %s", got.Side)
	}
	if got.Score != 1.0 {
		t.Errorf("expected clipped score=1.0, got %f", got.Score)
	}
}
