package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trading-bot/internal/broker"
	"trading-bot/internal/notify"
	"trading-bot/internal/policy"
)

// Coordinator 把策略决策转换为至多一笔券商委托。
// 每个标的独享一个实例，调用方保证同一标的不会并发执行。
type Coordinator struct {
	client   broker.Client
	bracket  broker.BracketPlacer // 为 nil 时退化为市价单
	notifier notify.Notifier
	symbol   string
	opts     Options

	lastSide     broker.Side
	lastActionAt time.Time

	now    func() time.Time
	logger *zap.Logger
}

// NewCoordinator 创建标的级执行协调器。
// client 实现 broker.BracketPlacer 时自动启用括号单能力。
func NewCoordinator(client broker.Client, notifier notify.Notifier, symbol string, opts Options, logger *zap.Logger) *Coordinator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bp, _ := client.(broker.BracketPlacer)
	return &Coordinator{
		client:   client,
		bracket:  bp,
		notifier: notifier,
		symbol:   symbol,
		opts:     opts,
		now:      time.Now,
		logger:   logger.With(zap.String("symbol", symbol)),
	}
}

// Execute 执行一次完整的决策评估：节流、方向校验、挂单去重、下单。
// 任何守卫拦截都返回未提交的 Outcome，不产生副作用。
func (c *Coordinator) Execute(ctx context.Context, in Input) Outcome {
	if in.Decision.Side == policy.SideHold {
		return skipped("hold")
	}
	if in.Sizing.Qty <= 0 {
		c.logger.Info("仓位数量为零，跳过下单",
			zap.String("side", string(in.Decision.Side)),
			zap.Float64("price", in.Price))
		return skipped("zero_qty")
	}

	side := broker.Side(in.Decision.Side)

	if reason := c.throttleReason(side); reason != "" {
		c.logger.Info("节流拦截", zap.String("reason", reason))
		return skipped(reason)
	}

	side, tag, reason := c.resolveDirection(ctx, side)
	if reason != "" {
		c.logger.Info("方向校验拦截", zap.String("reason", reason))
		return skipped(reason)
	}

	if c.hasOpenOrdersSafe(ctx) {
		c.logger.Info("存在未完成挂单，跳过重复下单")
		return skipped("open_order_exists")
	}

	res := c.submit(ctx, side, in)
	if !res.OK {
		c.logger.Error("委托提交失败",
			zap.String("side", string(side)),
			zap.Int64("qty", in.Sizing.Qty),
			zap.String("error", res.Err))
		c.notifier.NotifyError(fmt.Sprintf("%s %s 下单失败", side, c.symbol), errors.New(res.Err))
		return Outcome{Submitted: false, SkipReason: "order_failed", Side: side, Tag: tag, Result: res}
	}

	// 仅在委托被接受后推进节流状态。
	c.lastSide = side
	c.lastActionAt = c.now()

	c.logger.Info("委托已提交",
		zap.String("side", string(side)),
		zap.Int64("qty", in.Sizing.Qty),
		zap.Float64("price", in.Price),
		zap.String("order_id", res.ID),
		zap.String("status", res.Status),
		zap.String("tag", tag))

	noteReason := in.Decision.Reason
	if tag != "" {
		noteReason = fmt.Sprintf("%s (%s)", noteReason, tag)
	}
	c.notifier.NotifyTrade(string(side), c.symbol, in.Sizing.Qty, in.Price, in.Sizing.Stop, in.Sizing.Take, noteReason)

	return Outcome{Submitted: true, Side: side, Tag: tag, Result: res}
}

// throttleReason 返回非空字符串表示本次动作被时间窗拦截。
// 同向重复与反向翻转共用同一窗口，但给出不同的原因描述。
func (c *Coordinator) throttleReason(side broker.Side) string {
	if c.lastActionAt.IsZero() {
		return ""
	}
	elapsed := c.now().Sub(c.lastActionAt)
	if elapsed >= c.opts.MinFlip {
		return ""
	}
	remain := (c.opts.MinFlip - elapsed).Round(time.Second)
	if side == c.lastSide {
		return fmt.Sprintf("same-side throttle: %s again within window, %s left", side, remain)
	}
	return fmt.Sprintf("flip debounce: %s -> %s within window, %s left", c.lastSide, side, remain)
}

// resolveDirection 按当前持仓校验方向是否可执行。
// 查询失败按零仓位处理，宁可放行买入也不阻塞流程。
func (c *Coordinator) resolveDirection(ctx context.Context, side broker.Side) (broker.Side, string, string) {
	pos := c.positionQtySafe(ctx)

	switch side {
	case broker.SideBuy:
		if pos > 0 {
			return side, "", fmt.Sprintf("already long %.0f", pos)
		}
		if pos < 0 {
			return side, "cover short", ""
		}
		return side, "", ""
	case broker.SideSell:
		if pos > 0 {
			return side, "", ""
		}
		if c.opts.AllowShort {
			return side, "open short", ""
		}
		return side, "", "no position to sell"
	default:
		return side, "", fmt.Sprintf("unknown side %q", side)
	}
}

func (c *Coordinator) positionQtySafe(ctx context.Context) float64 {
	qty, err := c.client.PositionQty(ctx, c.symbol)
	if err != nil {
		c.logger.Warn("查询持仓失败，按零仓位处理", zap.Error(err))
		return 0
	}
	return qty
}

func (c *Coordinator) hasOpenOrdersSafe(ctx context.Context) bool {
	has, err := c.client.HasOpenOrders(ctx, c.symbol)
	if err != nil {
		c.logger.Warn("查询挂单失败，按无挂单处理", zap.Error(err))
		return false
	}
	return has
}

// submit 根据配置选择括号单或市价单路径。
func (c *Coordinator) submit(ctx context.Context, side broker.Side, in Input) broker.OrderResult {
	if c.opts.BracketMode && c.bracket != nil {
		tpPct, slPct, ok := c.bracketPcts(in)
		if ok {
			return c.bracket.PlaceBracket(ctx, c.symbol, side, in.Sizing.Qty, in.Price, tpPct, slPct, c.opts.TimeInForce)
		}
		c.logger.Warn("括号单参数不可用，回退市价单",
			zap.String("bracket_source", c.opts.BracketSource))
	}
	return c.client.PlaceOrder(ctx, c.symbol, side, in.Sizing.Qty, in.Price, in.Sizing.Stop, in.Sizing.Take)
}

// bracketPcts 把配置或 ATR 档位换算成止盈止损百分比。
func (c *Coordinator) bracketPcts(in Input) (tpPct, slPct float64, ok bool) {
	switch c.opts.BracketSource {
	case "atr":
		if in.Price <= 0 || in.Sizing.Take <= 0 || in.Sizing.Stop <= 0 {
			return 0, 0, false
		}
		tpPct = (in.Sizing.Take - in.Price) / in.Price
		slPct = (in.Price - in.Sizing.Stop) / in.Price
		if tpPct <= 0 || slPct <= 0 {
			return 0, 0, false
		}
		return tpPct, slPct, true
	default:
		if c.opts.TakeProfitPct <= 0 || c.opts.StopLossPct <= 0 {
			return 0, 0, false
		}
		return c.opts.TakeProfitPct, c.opts.StopLossPct, true
	}
}
