package sizing

import (
	"math"
	"testing"
)

func TestSize_WorkedExample(t *testing.T) {
	s := NewSizer(1.0, 2.0)

	got := s.Size(10000, 2.0, 100.0, 0.01)

	if got.Qty != 50 {
		t.Errorf("expected qty=50, got %d", got.Qty)
	}
	if diff := math.Abs(got.Stop - 98.0); diff > 1e-9 {
		t.Errorf("expected stop=98.0, got %f", got.Stop)
	}
	if diff := math.Abs(got.Take - 104.0); diff > 1e-9 {
		t.Errorf("expected take=104.0, got %f", got.Take)
	}
}

func TestSize_FlooredQty(t *testing.T) {
	s := NewSizer(1.0, 2.0)

	// 10000*0.01/3 = 33.33 -> 33
	got := s.Size(10000, 3.0, 100.0, 0.01)
	if got.Qty != 33 {
		t.Errorf("expected qty=33, got %d", got.Qty)
	}
}

func TestSize_StopClampedAtZero(t *testing.T) {
	s := NewSizer(1.0, 2.0)

	got := s.Size(10000, 5.0, 3.0, 0.01)
	if got.Stop != 0 {
		t.Errorf("expected stop clamped to 0, got %f", got.Stop)
	}
	if diff := math.Abs(got.Take - 13.0); diff > 1e-9 {
		t.Errorf("expected take=13.0, got %f", got.Take)
	}
}

func TestSize_FailSoft(t *testing.T) {
	s := NewSizer(1.0, 2.0)

	cases := []struct {
		name                        string
		equity, atr, price, riskPct float64
	}{
		{"zero atr", 10000, 0, 100, 0.01},
		{"negative atr", 10000, -1, 100, 0.01},
		{"zero price", 10000, 2, 0, 0.01},
		{"zero equity", 0, 2, 100, 0.01},
		{"zero risk", 10000, 2, 100, 0},
		{"nan atr", 10000, math.NaN(), 100, 0.01},
		{"inf price", 10000, 2, math.Inf(1), 0.01},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Size(tc.equity, tc.atr, tc.price, tc.riskPct)
			if got != (Result{}) {
				t.Errorf("expected zero result, got %+v", got)
			}
		})
	}
}

func TestNewSizer_Defaults(t *testing.T) {
	s := NewSizer(0, -1)

	got := s.Size(10000, 2.0, 100.0, 0.01)
	if diff := math.Abs(got.Stop - 98.0); diff > 1e-9 {
		t.Errorf("expected default stop_mult=1.0, stop=98.0, got %f", got.Stop)
	}
	if diff := math.Abs(got.Take - 104.0); diff > 1e-9 {
		t.Errorf("expected default take_mult=2.0, take=104.0, got %f", got.Take)
	}
}
