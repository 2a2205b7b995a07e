package policy

import (
	"fmt"
	"math"

	"trading-bot/internal/config"
	"trading-bot/internal/indicator"
)

// Side 表示策略给出的方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideHold Side = "hold"
)

// Decision 为策略对单个标的的一次决策，产出后不可变。
type Decision struct {
	Side   Side    `json:"side"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Policy 用 RSI 与 MACD 柱状值做软性打分：
// 两部分加权合成 [0,1] 的分数，超过最小阈值才给出方向。
type Policy struct {
	cfg config.PolicyConfig
}

// New 创建 Policy，阈值在启动时装配，不在调用点重复读取。
func New(cfg config.PolicyConfig) *Policy {
	if cfg.MACDScale <= 0 {
		cfg.MACDScale = 0.08
	}
	return &Policy{cfg: cfg}
}

// Decide 根据最新指标给出买/卖/观望决策。
func (p *Policy) Decide(ind indicator.Result) Decision {
	rsi := ind.RSI
	macdHist := ind.MACD.Histogram
	if math.IsNaN(rsi) {
		rsi = 0
	}
	if math.IsNaN(macdHist) {
		macdHist = 0
	}

	// 买方分量：RSI 超过买入阈值的程度，按到 70 的区间归一。
	buyRSIPart := clip01((rsi - p.cfg.RSIBuy) / math.Max(1.0, 70.0-p.cfg.RSIBuy))

	buyMACDPart := 0.0
	if macdHist > p.cfg.MACDHistBuy {
		buyMACDPart = clip01((macdHist - p.cfg.MACDHistBuy) / p.cfg.MACDScale)
	}

	buyScore := clip01(0.7*buyRSIPart + 0.3*buyMACDPart)

	// 卖方分量：RSI 低于卖出阈值的程度，按到 30 的区间归一。
	sellRSIPart := clip01((p.cfg.RSISell - rsi) / math.Max(1.0, p.cfg.RSISell-30.0))

	sellMACDPart := 0.0
	if macdHist < p.cfg.MACDHistSell {
		sellMACDPart = clip01((p.cfg.MACDHistSell - macdHist) / p.cfg.MACDScale)
	}

	sellScore := clip01(0.7*sellRSIPart + 0.3*sellMACDPart)

	if buyScore >= sellScore && buyScore >= p.cfg.MinScore {
		return Decision{
			Side:  SideBuy,
			Score: round3(buyScore),
			Reason: fmt.Sprintf("RSI=%.1f >= %.1f, MACD_hist=%.3f >= %.3f (macd_scale=%.3f)",
				rsi, p.cfg.RSIBuy, macdHist, p.cfg.MACDHistBuy, p.cfg.MACDScale),
		}
	}

	if sellScore > buyScore && sellScore >= p.cfg.MinScore {
		return Decision{
			Side:  SideSell,
			Score: round3(sellScore),
			Reason: fmt.Sprintf("RSI=%.1f <= %.1f, MACD_hist=%.3f <= %.3f (macd_scale=%.3f)",
				rsi, p.cfg.RSISell, macdHist, p.cfg.MACDHistSell, p.cfg.MACDScale),
		}
	}

	return Decision{Side: SideHold, Score: 0, Reason: "neutral/low confidence"}
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
