package backtest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trading-bot/internal/indicator"
	"trading-bot/internal/market"
	"trading-bot/internal/policy"
	"trading-bot/internal/sizing"
)

// Result 汇总回测结果。
type Result struct {
	Metrics      Metrics
	EquityCurve  []float64
	ReturnSeries []float64
	Trades       int
	FinalEquity  float64
}

// Engine 串联数据源、指标、策略、仓位与模拟执行。
type Engine struct {
	cfg       Config
	provider  CandleProvider
	calc      *indicator.Calculator
	decision  DecisionProvider
	sizer     *sizing.Sizer
	simulator *Simulator
	logger    *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, provider CandleProvider, calc *indicator.Calculator, decision DecisionProvider, sizer *sizing.Sizer, logger *zap.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("backtest: provider 不能为空")
	}
	if calc == nil {
		return nil, fmt.Errorf("backtest: indicator calculator 不能为空")
	}
	if decision == nil {
		return nil, fmt.Errorf("backtest: decision provider 不能为空")
	}
	if sizer == nil {
		return nil, fmt.Errorf("backtest: sizer 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.normalize()

	return &Engine{
		cfg:       cfg,
		provider:  provider,
		calc:      calc,
		decision:  decision,
		sizer:     sizer,
		simulator: NewSimulator(cfg.InitialEquity),
		logger:    logger,
	}, nil
}

// Run 执行完整回测流程。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	candles := make([]market.Candle, 0, 256)
	var lastClose float64

	for {
		candle, ok, err := e.provider.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		candles = append(candles, candle)
		lastClose = candle.Close
		e.simulator.Advance(candle.Low, candle.High, candle.Close)

		if len(candles) < e.cfg.MinBars {
			continue
		}

		ind, err := e.calc.Compute(e.cfg.Symbol, candles)
		if err != nil {
			e.logger.Warn("计算指标失败", zap.Error(err))
			continue
		}

		decision := e.decision.Decide(ind)
		if decision.Side == policy.SideHold {
			continue
		}

		e.apply(decision, ind, candle.Close)
	}

	if e.simulator.PositionQty() != 0 && lastClose > 0 {
		e.simulator.Close(lastClose)
	}

	metrics := calculateMetrics(e.simulator.EquityHistory(), e.simulator.ReturnHistory())
	return Result{
		Metrics:      metrics,
		EquityCurve:  e.simulator.EquityHistory(),
		ReturnSeries: e.simulator.ReturnHistory(),
		Trades:       e.simulator.TradeCount(),
		FinalEquity:  e.simulator.Equity(lastClose),
	}, nil
}

// apply 按实盘相同的方向规则把决策转换为台账操作。
func (e *Engine) apply(decision policy.Decision, ind indicator.Result, price float64) {
	pos := e.simulator.PositionQty()

	switch decision.Side {
	case policy.SideBuy:
		if pos > 0 {
			return
		}
		if pos < 0 {
			e.simulator.Close(price)
		}
		size := e.sizer.Size(e.simulator.Equity(price), ind.ATR, price, e.cfg.RiskPct)
		if size.Qty <= 0 {
			return
		}
		e.simulator.Open(float64(size.Qty), price, size.Stop, size.Take, false)
	case policy.SideSell:
		if pos > 0 {
			e.simulator.Close(price)
			return
		}
		if pos < 0 || !e.cfg.AllowShort {
			return
		}
		size := e.sizer.Size(e.simulator.Equity(price), ind.ATR, price, e.cfg.RiskPct)
		if size.Qty <= 0 {
			return
		}
		// 空头的止盈止损相对入场价对称翻转
		stop := price + (price - size.Stop)
		take := price - (size.Take - price)
		e.simulator.Open(float64(size.Qty), price, stop, take, true)
	}
}
