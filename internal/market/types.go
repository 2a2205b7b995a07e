package market

import "time"

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Snapshot 为核心管线消费的最新一根K线摘要。
type Snapshot struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	ATR         float64   `json:"atr"`
	Bars        int       `json:"bars"`
	RetrievedAt time.Time `json:"retrieved_at"`
}
