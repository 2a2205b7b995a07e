package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"trading-bot/internal/config"
)

// Alpaca 封装 Alpaca REST 接口（paper/live 同一套协议）。
// 只读调用对瞬时故障做有限次线性退避重试，写调用永不自动重试。
type Alpaca struct {
	client     *resty.Client
	cfg        config.BrokerConfig
	allowShort bool
	logger     *zap.Logger
}

// NewAlpaca 按配置构造 Alpaca 客户端。
func NewAlpaca(cfg config.BrokerConfig, logger *zap.Logger) *Alpaca {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeaders(map[string]string{
		"APCA-API-KEY-ID":     cfg.KeyID,
		"APCA-API-SECRET-KEY": cfg.SecretKey,
		"Accept":              "application/json",
		"Content-Type":        "application/json",
	})

	return &Alpaca{
		client:     client,
		cfg:        cfg,
		allowShort: cfg.AllowShort,
		logger:     logger,
	}
}

type alpacaAccount struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Equity string `json:"equity"`
}

type alpacaPosition struct {
	Symbol string `json:"symbol"`
	Qty    string `json:"qty"`
}

type alpacaOrder struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
}

type takeProfitSpec struct {
	LimitPrice float64 `json:"limit_price"`
}

type stopLossSpec struct {
	StopPrice float64 `json:"stop_price"`
}

type orderPayload struct {
	Symbol      string          `json:"symbol"`
	Qty         int64           `json:"qty"`
	Side        string          `json:"side"`
	Type        string          `json:"type"`
	TimeInForce string          `json:"time_in_force"`
	OrderClass  string          `json:"order_class,omitempty"`
	TakeProfit  *takeProfitSpec `json:"take_profit,omitempty"`
	StopLoss    *stopLossSpec   `json:"stop_loss,omitempty"`
}

// AccountEquity 查询账户净值。
func (a *Alpaca) AccountEquity(ctx context.Context) (float64, error) {
	var acct alpacaAccount
	resp, err := a.getWithRetry(ctx, "get_account", func() (*resty.Response, error) {
		return a.client.R().SetContext(ctx).SetResult(&acct).Get("/v2/account")
	})
	if err != nil {
		return 0, fmt.Errorf("查询账户失败: %w", err)
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("查询账户失败: %d: %s", resp.StatusCode(), apiMessage(resp.Body()))
	}

	equity, err := strconv.ParseFloat(acct.Equity, 64)
	if err != nil {
		return 0, fmt.Errorf("解析账户净值失败: %w", err)
	}
	return equity, nil
}

// PositionQty 查询带符号持仓数量；远端 404 视为无持仓，返回 0。
func (a *Alpaca) PositionQty(ctx context.Context, symbol string) (float64, error) {
	var pos alpacaPosition
	resp, err := a.getWithRetry(ctx, "get_position", func() (*resty.Response, error) {
		return a.client.R().SetContext(ctx).SetResult(&pos).Get("/v2/positions/" + symbol)
	})
	if err != nil {
		return 0, fmt.Errorf("查询持仓失败: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return 0, nil
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("查询持仓失败: %d: %s", resp.StatusCode(), apiMessage(resp.Body()))
	}

	qty, err := strconv.ParseFloat(pos.Qty, 64)
	if err != nil {
		return 0, fmt.Errorf("解析持仓数量失败: %w", err)
	}
	return qty, nil
}

// HasOpenOrders 查询该标的是否存在未完结委托。
func (a *Alpaca) HasOpenOrders(ctx context.Context, symbol string) (bool, error) {
	orders, err := a.listOpenOrders(ctx, symbol)
	if err != nil {
		return false, err
	}
	return len(orders) > 0, nil
}

// PlaceOrder 提交市价单。stop/take 为顾问价，仅记录不随单发送。
func (a *Alpaca) PlaceOrder(ctx context.Context, symbol string, side Side, qty int64, price, stop, take float64) OrderResult {
	if res, ok := a.checkSellAllowed(ctx, symbol, side); !ok {
		return res
	}

	a.cancelOppositeOrders(ctx, symbol, side)

	a.logger.Info("提交市价单",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Int64("qty", qty),
		zap.Float64("price", price),
		zap.Float64("advisory_stop", stop),
		zap.Float64("advisory_take", take),
	)

	return a.submit(ctx, orderPayload{
		Symbol:      symbol,
		Qty:         qty,
		Side:        string(side),
		Type:        "market",
		TimeInForce: a.cfg.TimeInForce,
	})
}

// PlaceBracket 先在本地推导并校验止盈/止损价，校验失败不发起任何网络调用。
func (a *Alpaca) PlaceBracket(ctx context.Context, symbol string, side Side, qty int64, entry, tpPct, slPct float64, tif string) OrderResult {
	take, stop, err := DeriveBracketPrices(side, entry, tpPct, slPct)
	if err != nil {
		return OrderResult{OK: false, Err: err.Error()}
	}

	if res, ok := a.checkSellAllowed(ctx, symbol, side); !ok {
		return res
	}

	a.cancelOppositeOrders(ctx, symbol, side)

	if tif == "" {
		tif = a.cfg.TimeInForce
	}

	a.logger.Info("提交 bracket 单",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Int64("qty", qty),
		zap.Float64("entry", entry),
		zap.Float64("take", take),
		zap.Float64("stop", stop),
		zap.String("tif", tif),
	)

	return a.submit(ctx, orderPayload{
		Symbol:      symbol,
		Qty:         qty,
		Side:        string(side),
		Type:        "market",
		TimeInForce: tif,
		OrderClass:  "bracket",
		TakeProfit:  &takeProfitSpec{LimitPrice: take},
		// stop_loss 只带 stop_price，避免多余的 422。
		StopLoss: &stopLossSpec{StopPrice: stop},
	})
}

// checkSellAllowed 在禁止做空时本地拦截缺少多头依据的卖出，
// 避免往返一笔券商必然拒绝的委托。
func (a *Alpaca) checkSellAllowed(ctx context.Context, symbol string, side Side) (OrderResult, bool) {
	if side != SideSell || a.allowShort {
		return OrderResult{}, true
	}

	qty, err := a.PositionQty(ctx, symbol)
	if err != nil || qty <= 0 {
		if err != nil {
			a.logger.Warn("卖出前无法确认持仓", zap.String("symbol", symbol), zap.Error(err))
		}
		return OrderResult{OK: false, Err: ErrNoPositionToSell.Error()}, false
	}
	return OrderResult{}, true
}

// cancelOppositeOrders 在提交前撤销同标的反方向挂单，规避 wash-trade 拒单。
// 尽力而为，撤单失败只记录日志，不阻塞新委托。
func (a *Alpaca) cancelOppositeOrders(ctx context.Context, symbol string, side Side) {
	orders, err := a.listOpenOrders(ctx, symbol)
	if err != nil {
		a.logger.Warn("查询挂单失败，跳过反向撤单", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	opposite := string(side.Opposite())
	for _, order := range orders {
		if order.Side != opposite {
			continue
		}
		resp, err := a.client.R().SetContext(ctx).Delete("/v2/orders/" + order.ID)
		if err != nil || !resp.IsSuccess() {
			a.logger.Warn("撤销反向挂单失败",
				zap.String("symbol", symbol),
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			continue
		}
		a.logger.Info("已撤销反向挂单",
			zap.String("symbol", symbol),
			zap.String("order_id", order.ID),
			zap.String("side", order.Side),
		)
	}
}

func (a *Alpaca) listOpenOrders(ctx context.Context, symbol string) ([]alpacaOrder, error) {
	var orders []alpacaOrder
	resp, err := a.getWithRetry(ctx, "list_open_orders", func() (*resty.Response, error) {
		return a.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"status":  "open",
				"symbols": symbol,
			}).
			SetResult(&orders).
			Get("/v2/orders")
	})
	if err != nil {
		return nil, fmt.Errorf("查询挂单失败: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("查询挂单失败: %d: %s", resp.StatusCode(), apiMessage(resp.Body()))
	}
	return orders, nil
}

func (a *Alpaca) submit(ctx context.Context, payload orderPayload) OrderResult {
	var ord alpacaOrder
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&ord).
		Post("/v2/orders")
	if err != nil {
		return OrderResult{OK: false, Err: fmt.Sprintf("transport: %v", err)}
	}
	if !resp.IsSuccess() {
		return OrderResult{
			OK:  false,
			Err: fmt.Sprintf("%d: %s", resp.StatusCode(), apiMessage(resp.Body())),
		}
	}

	return OrderResult{
		OK:        true,
		ID:        ord.ID,
		Status:    ord.Status,
		FilledQty: ord.FilledQty,
		AvgPrice:  ord.FilledAvgPrice,
	}
}

// getWithRetry 对只读调用做有限次线性退避重试。
func (a *Alpaca) getWithRetry(ctx context.Context, operation string, fn func() (*resty.Response, error)) (*resty.Response, error) {
	maxAttempts := a.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	minDelay := a.cfg.Retry.MinDelay
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}
	maxDelay := a.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 3 * time.Second
	}

	var (
		resp *resty.Response
		err  error
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		resp, err = fn()

		retry := false
		if err != nil {
			retry = IsRetryable(err)
		} else if retryableStatus(resp.StatusCode()) {
			retry = true
			err = fmt.Errorf("%d: %s", resp.StatusCode(), apiMessage(resp.Body()))
		} else {
			return resp, nil
		}

		if !retry || attempt == maxAttempts {
			break
		}

		wait := minDelay * time.Duration(attempt)
		if wait > maxDelay {
			wait = maxDelay
		}
		a.logger.Warn("券商只读调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// apiMessage 从响应体中提取券商错误原文，保持对运维可见。
func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if len(body) > 0 {
		return string(body)
	}
	return "unknown error"
}

var _ Client = (*Alpaca)(nil)
var _ BracketPlacer = (*Alpaca)(nil)
