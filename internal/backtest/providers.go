package backtest

import (
	"context"

	"trading-bot/internal/indicator"
	"trading-bot/internal/market"
	"trading-bot/internal/policy"
)

// SliceCandleProvider 以固定序列提供K线。
type SliceCandleProvider struct {
	candles []market.Candle
	index   int
}

func NewSliceCandleProvider(candles []market.Candle) *SliceCandleProvider {
	return &SliceCandleProvider{candles: candles}
}

func (p *SliceCandleProvider) Next(ctx context.Context) (market.Candle, bool, error) {
	if err := ctx.Err(); err != nil {
		return market.Candle{}, false, err
	}
	if p.index >= len(p.candles) {
		return market.Candle{}, false, nil
	}
	c := p.candles[p.index]
	p.index++
	return c, true, nil
}

// DecisionProviderFunc 允许使用函数作为决策提供者。
type DecisionProviderFunc func(ind indicator.Result) policy.Decision

func (f DecisionProviderFunc) Decide(ind indicator.Result) policy.Decision {
	if f == nil {
		return policy.Decision{Side: policy.SideHold, Reason: "no decision func"}
	}
	return f(ind)
}
