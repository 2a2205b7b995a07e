package broker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side 表示下单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite 返回相反方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderResult 为一次提交调用的终态结果，提交后不再轮询成交状态。
type OrderResult struct {
	OK        bool   `json:"ok"`
	ID        string `json:"id,omitempty"`
	Status    string `json:"status,omitempty"`
	FilledQty string `json:"filled_qty,omitempty"`
	AvgPrice  string `json:"avg_price,omitempty"`
	Err       string `json:"error,omitempty"`
}

// OpenOrder 描述一笔未完结的委托。
type OpenOrder struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`
	Status string `json:"status"`
}

// Client 抽象券商能力，协调器只依赖该接口。
type Client interface {
	// AccountEquity 返回账户净值。
	AccountEquity(ctx context.Context) (float64, error)
	// PositionQty 返回带符号的持仓数量，无持仓时返回 0 而不是错误。
	PositionQty(ctx context.Context, symbol string) (float64, error)
	// HasOpenOrders 查询是否存在未完结委托，尽力而为。
	HasOpenOrders(ctx context.Context, symbol string) (bool, error)
	// PlaceOrder 提交市价单，stop/take 仅作记录用途。
	PlaceOrder(ctx context.Context, symbol string, side Side, qty int64, price, stop, take float64) OrderResult
}

// BracketPlacer 为支持 bracket 委托的券商能力接口，
// 不支持的后端不实现该接口，由静态配置决定是否使用。
type BracketPlacer interface {
	// PlaceBracket 按入场价与百分比推导止盈/止损并提交 bracket 委托。
	PlaceBracket(ctx context.Context, symbol string, side Side, qty int64, entry, tpPct, slPct float64, tif string) OrderResult
}

// RoundTick 将价格对齐到股票的最小报价单位（2位小数）。
func RoundTick(price float64) float64 {
	rounded, _ := decimal.NewFromFloat(price).Round(2).Float64()
	return rounded
}

// DeriveBracketPrices 按入场价与百分比推导止盈/止损价并校验方向约束：
// 买入要求 take > stop，卖出要求 take < stop。校验在任何网络调用之前完成。
func DeriveBracketPrices(side Side, entry, tpPct, slPct float64) (take, stop float64, err error) {
	if entry <= 0 {
		return 0, 0, fmt.Errorf("%w: 入场价非法 %.4f", ErrInvalidBracket, entry)
	}
	if tpPct <= 0 || slPct <= 0 {
		return 0, 0, fmt.Errorf("%w: tp_pct=%.4f sl_pct=%.4f", ErrInvalidBracket, tpPct, slPct)
	}

	if side == SideBuy {
		take = entry * (1.0 + tpPct)
		stop = entry * (1.0 - slPct)
	} else {
		take = entry * (1.0 - tpPct)
		stop = entry * (1.0 + slPct)
	}

	take = RoundTick(take)
	stop = RoundTick(stop)

	if side == SideBuy && take <= stop {
		return 0, 0, fmt.Errorf("%w: buy 要求 take(%.2f) > stop(%.2f)", ErrInvalidBracket, take, stop)
	}
	if side == SideSell && take >= stop {
		return 0, 0, fmt.Errorf("%w: sell 要求 take(%.2f) < stop(%.2f)", ErrInvalidBracket, take, stop)
	}

	return take, stop, nil
}
