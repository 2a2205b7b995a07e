package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Market    MarketConfig    `mapstructure:"market"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Sizing    SizingConfig    `mapstructure:"sizing"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// MarketConfig 描述行情数据来源。
type MarketConfig struct {
	Tickers  []string `mapstructure:"tickers"`
	Period   string   `mapstructure:"period"`
	Interval string   `mapstructure:"interval"`
	MinBars  int      `mapstructure:"min_bars"`
}

// PolicyConfig 管理信号策略阈值。
type PolicyConfig struct {
	RSIBuy       float64 `mapstructure:"rsi_buy"`
	RSISell      float64 `mapstructure:"rsi_sell"`
	MACDHistBuy  float64 `mapstructure:"macd_hist_buy"`
	MACDHistSell float64 `mapstructure:"macd_hist_sell"`
	MinScore     float64 `mapstructure:"min_score"`
	MACDScale    float64 `mapstructure:"macd_scale"`
}

// SizingConfig 管理仓位规模计算参数。
type SizingConfig struct {
	Equity   float64 `mapstructure:"equity"`
	RiskPct  float64 `mapstructure:"risk_pct"`
	StopMult float64 `mapstructure:"stop_mult"`
	TakeMult float64 `mapstructure:"take_mult"`
}

// BrokerConfig 描述券商连接信息。
type BrokerConfig struct {
	Mode        string        `mapstructure:"mode"`
	BaseURL     string        `mapstructure:"base_url"`
	KeyID       string        `mapstructure:"key_id"`
	SecretKey   string        `mapstructure:"secret_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	AllowShort  bool          `mapstructure:"allow_short"`
	TimeInForce string        `mapstructure:"time_in_force"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

// IsPaper 判断当前连接是否指向模拟盘接入点。
func (c BrokerConfig) IsPaper() bool {
	return c.Mode != BrokerModeAlpaca || strings.Contains(c.BaseURL, "paper")
}

// RetryConfig 统一控制只读调用的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ExecutionConfig 控制下单行为。
type ExecutionConfig struct {
	BracketMode   bool          `mapstructure:"bracket_mode"`
	BracketSource string        `mapstructure:"bracket_source"`
	TakeProfitPct float64       `mapstructure:"take_profit_pct"`
	StopLossPct   float64       `mapstructure:"stop_loss_pct"`
	MinFlip       time.Duration `mapstructure:"min_flip"`
}

// NotifyConfig 管理通知渠道。
type NotifyConfig struct {
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
	TelegramChatID   int64         `mapstructure:"telegram_chat_id"`
	HeartbeatEvery   time.Duration `mapstructure:"heartbeat_every"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// SchedulerConfig 控制主循环节奏。
type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// MonitorConfig 控制监控接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// 券商模式取值。
const (
	BrokerModeSim    = "sim"
	BrokerModeAlpaca = "alpaca"
)

// Bracket 止盈止损价格来源取值。
const (
	BracketSourcePercent = "percent"
	BracketSourceATR     = "atr"
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if len(c.Market.Tickers) == 0 {
		err = multierr.Append(err, errors.New("market.tickers 至少包含一个标的"))
	}
	for _, ticker := range c.Market.Tickers {
		if strings.TrimSpace(ticker) == "" {
			err = multierr.Append(err, errors.New("market.tickers 不能包含空标的"))
		}
	}
	if c.Market.Period == "" {
		err = multierr.Append(err, errors.New("market.period 不能为空"))
	}
	if c.Market.Interval == "" {
		err = multierr.Append(err, errors.New("market.interval 不能为空"))
	}
	if c.Market.MinBars <= 0 {
		err = multierr.Append(err, errors.New("market.min_bars 必须大于0"))
	}
	if c.Policy.MACDScale <= 0 {
		err = multierr.Append(err, errors.New("policy.macd_scale 必须大于0"))
	}
	if c.Policy.MinScore < 0 || c.Policy.MinScore > 1 {
		err = multierr.Append(err, errors.New("policy.min_score 必须位于[0,1]"))
	}
	if c.Sizing.Equity <= 0 {
		err = multierr.Append(err, errors.New("sizing.equity 必须大于0"))
	}
	if c.Sizing.RiskPct <= 0 || c.Sizing.RiskPct > 1 {
		err = multierr.Append(err, errors.New("sizing.risk_pct 必须位于(0,1]"))
	}
	if c.Sizing.StopMult <= 0 {
		err = multierr.Append(err, errors.New("sizing.stop_mult 必须大于0"))
	}
	if c.Sizing.TakeMult <= 0 {
		err = multierr.Append(err, errors.New("sizing.take_mult 必须大于0"))
	}
	switch c.Broker.Mode {
	case BrokerModeSim:
	case BrokerModeAlpaca:
		if c.Broker.BaseURL == "" {
			err = multierr.Append(err, errors.New("broker.base_url 不能为空"))
		}
		if c.Broker.KeyID == "" || c.Broker.SecretKey == "" {
			err = multierr.Append(err, errors.New("alpaca 模式需要配置 key_id 与 secret_key"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("broker.mode 取值非法: %q", c.Broker.Mode))
	}
	if c.Broker.Timeout <= 0 {
		err = multierr.Append(err, errors.New("broker.timeout 必须大于0"))
	}
	if c.Broker.TimeInForce == "" {
		err = multierr.Append(err, errors.New("broker.time_in_force 不能为空"))
	}
	if c.Broker.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("broker.retry.max_attempts 必须大于0"))
	}
	if c.Broker.Retry.MinDelay <= 0 || c.Broker.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("broker.retry.delay 必须为正"))
	}
	if c.Broker.Retry.MinDelay > c.Broker.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("broker.retry.min_delay 不能大于 max_delay"))
	}
	switch c.Execution.BracketSource {
	case BracketSourcePercent, BracketSourceATR:
	default:
		err = multierr.Append(err, fmt.Errorf("execution.bracket_source 取值非法: %q", c.Execution.BracketSource))
	}
	if c.Execution.TakeProfitPct <= 0 || c.Execution.TakeProfitPct >= 1 {
		err = multierr.Append(err, errors.New("execution.take_profit_pct 必须位于(0,1)"))
	}
	if c.Execution.StopLossPct <= 0 || c.Execution.StopLossPct >= 1 {
		err = multierr.Append(err, errors.New("execution.stop_loss_pct 必须位于(0,1)"))
	}
	if c.Execution.MinFlip < 0 {
		err = multierr.Append(err, errors.New("execution.min_flip 不能为负"))
	}
	if c.Notify.HeartbeatEvery < 0 {
		err = multierr.Append(err, errors.New("notify.heartbeat_every 不能为负"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Scheduler.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.poll_interval 必须大于0"))
	}
	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于[1,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
