package monitor

import (
	"time"

	"trading-bot/internal/executor"
	"trading-bot/internal/indicator"
	"trading-bot/internal/market"
	"trading-bot/internal/policy"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventMarketSnapshot EventType = "market_snapshot"
	EventDecision       EventType = "decision"
	EventExecution      EventType = "execution"
	EventError          EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// MarketSnapshotPayload 记录行情与指标快照。
type MarketSnapshotPayload struct {
	Snapshot   market.Snapshot  `json:"snapshot"`
	Indicators indicator.Result `json:"indicators"`
}

// DecisionPayload 记录策略决策。
type DecisionPayload struct {
	Symbol     string           `json:"symbol"`
	Decision   policy.Decision  `json:"decision"`
	Indicators indicator.Result `json:"indicators"`
}

// ExecutionPayload 记录订单执行结果。
type ExecutionPayload struct {
	Symbol  string           `json:"symbol"`
	Input   executor.Input   `json:"input"`
	Outcome executor.Outcome `json:"outcome"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
