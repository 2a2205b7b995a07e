package sizing

import "math"

// Result 为一次仓位规模计算的输出，Qty 为 0 表示放弃下单。
type Result struct {
	Qty  int64   `json:"qty"`
	Stop float64 `json:"stop"`
	Take float64 `json:"take"`
}

// Sizer 按 ATR 计算仓位规模：每笔交易固定风险占净值的一个比例，
// 止损约一个 ATR 之下，止盈按倍数之上。无副作用、无 I/O。
type Sizer struct {
	stopMult float64
	takeMult float64
}

// NewSizer 创建 Sizer，倍数非正时回落到默认值 1.0 / 2.0。
func NewSizer(stopMult, takeMult float64) *Sizer {
	if stopMult <= 0 {
		stopMult = 1.0
	}
	if takeMult <= 0 {
		takeMult = 2.0
	}
	return &Sizer{stopMult: stopMult, takeMult: takeMult}
}

// Size 计算下单数量与顾问性止损/止盈价。
// 任一前置条件不满足时软失败返回 {0,0,0}，绝不报错。
func (s *Sizer) Size(equity, atr, price, riskPct float64) Result {
	if atr <= 0 || price <= 0 || equity <= 0 || riskPct <= 0 {
		return Result{}
	}
	if math.IsNaN(atr) || math.IsNaN(price) || math.IsInf(atr, 0) || math.IsInf(price, 0) {
		return Result{}
	}

	riskAmount := equity * riskPct
	perShareRisk := atr
	if perShareRisk <= 0 {
		return Result{}
	}

	qty := int64(math.Floor(riskAmount / perShareRisk))
	if qty < 0 {
		qty = 0
	}

	stop := math.Max(price-s.stopMult*atr, 0.0)
	take := price + s.takeMult*atr

	return Result{Qty: qty, Stop: stop, Take: take}
}
