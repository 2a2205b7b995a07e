package broker

import (
	"context"
	"errors"
	"net"
	"net/http"
)

var (
	// ErrInvalidBracket 表示 bracket 止盈/止损价格不满足方向约束，本地拒绝且不可重试。
	ErrInvalidBracket = errors.New("invalid bracket prices")
	// ErrNoPositionToSell 表示禁止做空时卖出方向缺少可平仓的多头依据。
	ErrNoPositionToSell = errors.New("no_position_to_sell")
)

// IsRetryable 判断只读调用的错误是否可重试（超时或网络错误）。
// 写调用永不自动重试，重试策略属于调用方。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// retryableStatus 判断 HTTP 状态码是否属于可重试的瞬时故障。
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}
