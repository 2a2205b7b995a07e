package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"go.uber.org/zap"

	"trading-bot/internal/config"
)

// Yahoo 对分钟级K线的回看深度限制（天）。
var intervalMaxDays = map[string]int{
	"1m":  30,
	"2m":  30,
	"5m":  60,
	"15m": 60,
}

// 拉取失败时退化到更粗的周期再试一次。
var intervalFallback = map[string]string{
	"15m": "30m",
	"30m": "1h",
}

// Client 通过 Yahoo Finance 拉取历史K线。
type Client struct {
	period   string
	interval string
	logger   *zap.Logger
}

// NewClient 创建行情客户端。
func NewClient(cfg config.MarketConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		period:   cfg.Period,
		interval: cfg.Interval,
		logger:   logger,
	}
}

// FetchBars 拉取指定标的的K线，按时间升序返回。
// period 超出该 interval 的回看限制时自动收缩。
func (c *Client) FetchBars(ctx context.Context, ticker string) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	period := c.normalizePeriod(c.period, c.interval)

	candles, err := fetchOnce(ticker, period, c.interval)
	if err == nil {
		return candles, nil
	}
	c.logger.Warn("拉取K线失败",
		zap.String("ticker", ticker),
		zap.String("period", period),
		zap.String("interval", c.interval),
		zap.Error(err),
	)

	fallback, ok := intervalFallback[c.interval]
	if !ok {
		return nil, err
	}

	c.logger.Warn("改用更粗周期重试",
		zap.String("ticker", ticker),
		zap.String("interval", fallback),
	)
	candles, fbErr := fetchOnce(ticker, c.period, fallback)
	if fbErr != nil {
		return nil, fmt.Errorf("拉取K线失败（含降级重试）: %w", err)
	}
	return candles, nil
}

// normalizePeriod 按 interval 的限制收缩 period（例如 1m 最多回看 30 天）。
func (c *Client) normalizePeriod(period, interval string) string {
	maxDays, ok := intervalMaxDays[interval]
	if !ok {
		return period
	}

	days, ok := periodDays(period)
	if !ok {
		return period
	}

	if days > maxDays {
		adjusted := fmt.Sprintf("%dd", maxDays)
		c.logger.Warn("period 超出该 interval 的回看限制，自动收缩",
			zap.String("period", period),
			zap.String("interval", interval),
			zap.String("adjusted", adjusted),
		)
		return adjusted
	}
	return period
}

// periodDays 解析 60d / 3mo / 1y 形式的周期为天数。
func periodDays(period string) (int, bool) {
	period = strings.TrimSpace(period)
	switch {
	case strings.HasSuffix(period, "mo"):
		n, err := strconv.Atoi(strings.TrimSuffix(period, "mo"))
		if err != nil {
			return 0, false
		}
		return n * 30, true
	case strings.HasSuffix(period, "d"):
		n, err := strconv.Atoi(strings.TrimSuffix(period, "d"))
		if err != nil {
			return 0, false
		}
		return n, true
	case strings.HasSuffix(period, "y"):
		n, err := strconv.Atoi(strings.TrimSuffix(period, "y"))
		if err != nil {
			return 0, false
		}
		return n * 365, true
	default:
		return 0, false
	}
}

func fetchOnce(ticker, period, interval string) ([]Candle, error) {
	days, ok := periodDays(period)
	if !ok || days <= 0 {
		return nil, fmt.Errorf("无法解析 period %q", period)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	params := &chart.Params{
		Symbol:   strings.ToUpper(ticker),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.Interval(interval),
	}

	iter := chart.Get(params)

	candles := make([]Candle, 0, 256)
	for iter.Next() {
		bar := iter.Bar()

		open, _ := bar.Open.Float64()
		high, _ := bar.High.Float64()
		low, _ := bar.Low.Float64()
		closePrice, _ := bar.Close.Float64()

		candles = append(candles, Candle{
			Timestamp: time.Unix(int64(bar.Timestamp), 0).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    float64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart 接口错误 (%s, %s, %s): %w", ticker, period, interval, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("yahoo 返回空历史 (%s, %s, %s)", ticker, period, interval)
	}

	return candles, nil
}
