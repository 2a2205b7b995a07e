package backtest

import (
	"context"

	"trading-bot/internal/indicator"
	"trading-bot/internal/market"
	"trading-bot/internal/policy"
)

// CandleProvider 按时间顺序提供K线。
type CandleProvider interface {
	Next(ctx context.Context) (market.Candle, bool, error)
}

// DecisionProvider 根据指标给出交易决策，便于在回测中注入不同策略。
// *policy.Policy 直接满足该接口。
type DecisionProvider interface {
	Decide(ind indicator.Result) policy.Decision
}
