package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trading-bot/internal/broker"
	"trading-bot/internal/config"
	"trading-bot/internal/executor"
	"trading-bot/internal/indicator"
	"trading-bot/internal/market"
	"trading-bot/internal/monitor"
	"trading-bot/internal/notify"
	"trading-bot/internal/policy"
	"trading-bot/internal/sizing"
)

// symbolWorker 串联单个标的的完整流水线：行情、指标、策略、仓位、执行。
// 每个标的独享一个实例，实例内的状态只被单线程访问。
type symbolWorker struct {
	symbol   string
	market   *market.Client
	calc     *indicator.Calculator
	policy   *policy.Policy
	sizer    *sizing.Sizer
	coord    *executor.Coordinator
	client   broker.Client
	monitor  *monitor.Service
	notifier notify.Notifier
	sizing   config.SizingConfig
	logger   *zap.Logger
}

// runOnce 执行一次完整迭代。任何失败只影响本次迭代，
// panic 在此边界恢复，不会拖垮其它标的的循环。
func (w *symbolWorker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			w.logger.Error("标的循环发生 panic", zap.Any("panic", r))
			w.monitor.RecordError(ctx, "标的循环发生 panic", err, map[string]interface{}{"symbol": w.symbol})
			w.notifier.NotifyError(fmt.Sprintf("%s 循环异常", w.symbol), err)
		}
	}()

	candles, err := w.market.FetchBars(ctx, w.symbol)
	if err != nil {
		w.logger.Warn("拉取行情失败", zap.Error(err))
		w.monitor.RecordError(ctx, "拉取行情失败", err, map[string]interface{}{"symbol": w.symbol})
		return
	}

	ind, err := w.calc.Compute(w.symbol, candles)
	if err != nil {
		w.logger.Warn("计算指标失败", zap.Error(err))
		w.monitor.RecordError(ctx, "计算指标失败", err, map[string]interface{}{"symbol": w.symbol})
		return
	}

	snap := market.Snapshot{
		Symbol:      w.symbol,
		Price:       ind.Close,
		ATR:         ind.ATR,
		Bars:        len(candles),
		RetrievedAt: time.Now().UTC(),
	}
	w.monitor.RecordMarketSnapshot(ctx, snap, ind)

	decision := w.policy.Decide(ind)
	w.monitor.RecordDecision(ctx, w.symbol, decision, ind)

	w.logger.Info("策略决策",
		zap.String("side", string(decision.Side)),
		zap.Float64("score", decision.Score),
		zap.Float64("price", ind.Close),
		zap.Float64("rsi", ind.RSI),
		zap.String("reason", decision.Reason))

	if decision.Side == policy.SideHold {
		return
	}

	size := w.sizer.Size(w.equity(ctx), ind.ATR, ind.Close, w.sizing.RiskPct)

	in := executor.Input{
		Decision: decision,
		Price:    ind.Close,
		ATR:      ind.ATR,
		Sizing:   size,
	}
	out := w.coord.Execute(ctx, in)
	w.monitor.RecordExecution(ctx, w.symbol, in, out)
}

// equity 优先取券商账户权益，失败时退回配置的静态权益。
func (w *symbolWorker) equity(ctx context.Context) float64 {
	eq, err := w.client.AccountEquity(ctx)
	if err != nil || eq <= 0 {
		if err != nil {
			w.logger.Warn("查询账户权益失败，使用配置值", zap.Error(err))
		}
		return w.sizing.Equity
	}
	return eq
}
