package executor

import (
	"time"

	"trading-bot/internal/broker"
	"trading-bot/internal/policy"
	"trading-bot/internal/sizing"
)

// Options 控制协调器的下单行为，启动时装配一次。
type Options struct {
	BracketMode   bool
	BracketSource string
	TakeProfitPct float64
	StopLossPct   float64
	MinFlip       time.Duration
	AllowShort    bool
	TimeInForce   string
}

// Input 汇总一次迭代的决策、行情与仓位规模输入，迭代内不可变。
type Input struct {
	Decision policy.Decision `json:"decision"`
	Price    float64         `json:"price"`
	ATR      float64         `json:"atr"`
	Sizing   sizing.Result   `json:"sizing"`
}

// Outcome 为一次迭代的执行结果：最多提交一笔委托。
type Outcome struct {
	Submitted  bool               `json:"submitted"`
	SkipReason string             `json:"skip_reason,omitempty"`
	Side       broker.Side        `json:"side,omitempty"`
	Tag        string             `json:"tag,omitempty"`
	Result     broker.OrderResult `json:"result,omitempty"`
}

// skipped 构造一个未提交的结果。
func skipped(reason string) Outcome {
	return Outcome{Submitted: false, SkipReason: reason}
}
