package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "trading"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trading-bot")
	v.SetDefault("app.environment", "development")

	v.SetDefault("market.tickers", []string{"AAPL"})
	v.SetDefault("market.period", "1mo")
	v.SetDefault("market.interval", "30m")
	v.SetDefault("market.min_bars", 20)

	v.SetDefault("policy.rsi_buy", 55.0)
	v.SetDefault("policy.rsi_sell", 46.0)
	v.SetDefault("policy.macd_hist_buy", 0.0)
	v.SetDefault("policy.macd_hist_sell", 0.0)
	v.SetDefault("policy.min_score", 0.10)
	v.SetDefault("policy.macd_scale", 0.08)

	v.SetDefault("sizing.equity", 10000.0)
	v.SetDefault("sizing.risk_pct", 0.01)
	v.SetDefault("sizing.stop_mult", 1.0)
	v.SetDefault("sizing.take_mult", 2.0)

	v.SetDefault("broker.mode", "sim")
	v.SetDefault("broker.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("broker.timeout", "30s")
	v.SetDefault("broker.allow_short", false)
	v.SetDefault("broker.time_in_force", "day")
	v.SetDefault("broker.retry.max_attempts", 3)
	v.SetDefault("broker.retry.min_delay", "500ms")
	v.SetDefault("broker.retry.max_delay", "3s")

	v.SetDefault("execution.bracket_mode", true)
	v.SetDefault("execution.bracket_source", "percent")
	v.SetDefault("execution.take_profit_pct", 0.01)
	v.SetDefault("execution.stop_loss_pct", 0.005)
	v.SetDefault("execution.min_flip", "60s")

	v.SetDefault("notify.heartbeat_every", "0s")

	v.SetDefault("database.path", "data/trading_bot.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("scheduler.poll_interval", "30s")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.port", 8090)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
