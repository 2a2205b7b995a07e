package broker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Simulated 为内存模拟券商，用于干跑与测试。
// 持仓账本的加减算术与真实路径保持一致，
// 使得防抖与方向判定在两种模式下行为相同。
type Simulated struct {
	equity float64
	logger *zap.Logger

	mu        sync.Mutex
	positions map[string]float64
	seq       int64
}

// NewSimulated 创建模拟券商，equity 为固定账户净值。
func NewSimulated(equity float64, logger *zap.Logger) *Simulated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		equity:    equity,
		logger:    logger,
		positions: make(map[string]float64),
	}
}

// AccountEquity 返回配置的固定净值。
func (s *Simulated) AccountEquity(ctx context.Context) (float64, error) {
	return s.equity, nil
}

// PositionQty 返回账本中的带符号持仓，无记录时为 0。
func (s *Simulated) PositionQty(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[symbol], nil
}

// HasOpenOrders 模拟成交即时完成，永远没有挂单。
func (s *Simulated) HasOpenOrders(ctx context.Context, symbol string) (bool, error) {
	return false, nil
}

// PlaceOrder 立即按方向更新账本并返回成功结果。
func (s *Simulated) PlaceOrder(ctx context.Context, symbol string, side Side, qty int64, price, stop, take float64) OrderResult {
	s.apply(symbol, side, qty)

	s.logger.Info("模拟市价单已成交",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Int64("qty", qty),
		zap.Float64("price", price),
		zap.Float64("stop", stop),
		zap.Float64("take", take),
	)

	return s.filled(qty)
}

// PlaceBracket 校验价格约束后按方向更新账本。
func (s *Simulated) PlaceBracket(ctx context.Context, symbol string, side Side, qty int64, entry, tpPct, slPct float64, tif string) OrderResult {
	take, stop, err := DeriveBracketPrices(side, entry, tpPct, slPct)
	if err != nil {
		return OrderResult{OK: false, Err: err.Error()}
	}

	s.apply(symbol, side, qty)

	s.logger.Info("模拟 bracket 单已成交",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Int64("qty", qty),
		zap.Float64("entry", entry),
		zap.Float64("take", take),
		zap.Float64("stop", stop),
		zap.String("tif", tif),
	)

	return s.filled(qty)
}

func (s *Simulated) apply(symbol string, side Side, qty int64) {
	delta := float64(qty)
	if side == SideSell {
		delta = -delta
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[symbol] += delta
	if s.positions[symbol] == 0 {
		delete(s.positions, symbol)
	}
}

func (s *Simulated) filled(qty int64) OrderResult {
	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("sim-%d", s.seq)
	s.mu.Unlock()

	return OrderResult{
		OK:        true,
		ID:        id,
		Status:    "filled",
		FilledQty: fmt.Sprintf("%d", qty),
	}
}

var (
	_ Client        = (*Simulated)(nil)
	_ BracketPlacer = (*Simulated)(nil)
)
