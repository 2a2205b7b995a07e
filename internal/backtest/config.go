package backtest

// Config 定义回测参数。
type Config struct {
	Symbol        string  // 标的代码
	InitialEquity float64 // 初始净值
	RiskPct       float64 // 单笔风险占比
	MinBars       int     // 起算所需最少K线数
	AllowShort    bool    // 是否允许做空
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = 10000
	}
	if cfg.RiskPct <= 0 {
		cfg.RiskPct = 0.01
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = 40
	}
	return cfg
}
