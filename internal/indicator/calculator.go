package indicator

import (
	"fmt"
	"sync"

	talib "github.com/markcheno/go-talib"

	"trading-bot/internal/market"
)

// MACDResult 保存 MACD 关键值。
type MACDResult struct {
	Value         float64 `json:"value"`
	Signal        float64 `json:"signal"`
	Histogram     float64 `json:"histogram"`
	PrevHistogram float64 `json:"prev_histogram"`
}

// Result 为一次指标计算的汇总。
type Result struct {
	RSI           float64    `json:"rsi"`
	MACD          MACDResult `json:"macd"`
	ATR           float64    `json:"atr"`
	Close         float64    `json:"close"`
	PreviousClose float64    `json:"previous_close"`
}

// MACD 最少需要 slow(26)+signal(9) 根K线才能出信号。
const minBarsForMACD = 35

type cacheEntry struct {
	key    string
	result Result
}

// Calculator 提供 RSI/MACD/ATR 计算并带有简单缓存。
type Calculator struct {
	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewCalculator 创建 Calculator。
func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[string]cacheEntry),
	}
}

// Compute 依据给定K线计算指标，按标的缓存最近一次结果。
func (c *Calculator) Compute(ticker string, candles []market.Candle) (Result, error) {
	if len(candles) < minBarsForMACD {
		return Result{}, fmt.Errorf("计算指标失败: K线数量不足 (%d < %d)", len(candles), minBarsForMACD)
	}

	series := NewSeries(candles)
	cacheKey := fmt.Sprintf("%s:%d:%d", ticker, series.Len(), series.Timestamps[series.Len()-1].Unix())

	c.mu.Lock()
	if entry, ok := c.cache[ticker]; ok && entry.key == cacheKey {
		c.mu.Unlock()
		return entry.result, nil
	}
	c.mu.Unlock()

	result := calculate(series)

	c.mu.Lock()
	c.cache[ticker] = cacheEntry{key: cacheKey, result: result}
	c.mu.Unlock()

	return result, nil
}

func calculate(series Series) Result {
	closePrices := series.Close
	highs := series.High
	lows := series.Low

	rsi := talib.Rsi(closePrices, 14)
	macd, macdSignal, macdHist := talib.Macd(closePrices, 12, 26, 9)
	atr := talib.Atr(highs, lows, closePrices, 14)

	return Result{
		RSI: Last(rsi),
		MACD: MACDResult{
			Value:         Last(macd),
			Signal:        Last(macdSignal),
			Histogram:     Last(macdHist),
			PrevHistogram: Prev(macdHist),
		},
		ATR:           Last(atr),
		Close:         Last(closePrices),
		PreviousClose: Prev(closePrices),
	}
}
