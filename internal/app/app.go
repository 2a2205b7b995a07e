package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trading-bot/internal/broker"
	"trading-bot/internal/config"
	"trading-bot/internal/executor"
	"trading-bot/internal/indicator"
	"trading-bot/internal/market"
	"trading-bot/internal/monitor"
	"trading-bot/internal/notify"
	"trading-bot/internal/policy"
	"trading-bot/internal/sizing"
	"trading-bot/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 装配各标的流水线并阻塞驱动调度循环，直到上下文取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("broker_mode", a.cfg.Broker.Mode),
		zap.Strings("tickers", a.cfg.Market.Tickers),
	)

	monitorSvc, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return fmt.Errorf("初始化监控服务失败: %w", err)
	}
	if a.cfg.Monitor.Enabled {
		if err := startMonitorServer(ctx, monitorSvc, a.cfg.Monitor.Port, a.logger); err != nil {
			return err
		}
	}

	client, err := a.newBrokerClient()
	if err != nil {
		return err
	}

	notifier := a.newNotifier()

	marketClient := market.NewClient(a.cfg.Market, a.logger)
	calc := indicator.NewCalculator()
	pol := policy.New(a.cfg.Policy)
	sizer := sizing.NewSizer(a.cfg.Sizing.StopMult, a.cfg.Sizing.TakeMult)

	workers := make([]*symbolWorker, 0, len(a.cfg.Market.Tickers))
	for _, ticker := range a.cfg.Market.Tickers {
		coord := executor.NewCoordinator(client, notifier, ticker, executor.Options{
			BracketMode:   a.cfg.Execution.BracketMode,
			BracketSource: a.cfg.Execution.BracketSource,
			TakeProfitPct: a.cfg.Execution.TakeProfitPct,
			StopLossPct:   a.cfg.Execution.StopLossPct,
			MinFlip:       a.cfg.Execution.MinFlip,
			AllowShort:    a.cfg.Broker.AllowShort,
			TimeInForce:   a.cfg.Broker.TimeInForce,
		}, a.logger)

		workers = append(workers, &symbolWorker{
			symbol:   ticker,
			market:   marketClient,
			calc:     calc,
			policy:   pol,
			sizer:    sizer,
			coord:    coord,
			client:   client,
			monitor:  monitorSvc,
			notifier: notifier,
			sizing:   a.cfg.Sizing,
			logger:   a.logger.With(zap.String("symbol", ticker)),
		})
	}

	notifier.NotifyStart(a.cfg.App.Name, a.cfg.Broker.IsPaper(), a.cfg.Market.Tickers, a.cfg.Market.Interval)

	pollInterval := a.cfg.Scheduler.PollInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	a.tick(ctx, workers, notifier)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("系统异常退出: %w", err)
			}
			a.logger.Info("系统收到退出信号，正在停止")
			return nil
		case <-ticker.C:
			a.tick(ctx, workers, notifier)
		}
	}
}

// tick 并发驱动全部标的，单个标的的失败不影响其余标的。
func (a *App) tick(ctx context.Context, workers []*symbolWorker, notifier notify.Notifier) {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			w.runOnce(gctx)
			return nil
		})
	}
	_ = g.Wait()

	notifier.MaybeHeartbeat(fmt.Sprintf("轮询完成，标的数 %d", len(workers)))
}

func (a *App) newBrokerClient() (broker.Client, error) {
	switch a.cfg.Broker.Mode {
	case config.BrokerModeAlpaca:
		return broker.NewAlpaca(a.cfg.Broker, a.logger), nil
	case config.BrokerModeSim:
		a.logger.Info("券商客户端处于模拟模式", zap.Float64("equity", a.cfg.Sizing.Equity))
		return broker.NewSimulated(a.cfg.Sizing.Equity, a.logger), nil
	default:
		return nil, fmt.Errorf("未知券商模式: %s", a.cfg.Broker.Mode)
	}
}

func (a *App) newNotifier() notify.Notifier {
	if a.cfg.Notify.TelegramBotToken == "" {
		a.logger.Info("未配置 Telegram，通知功能关闭")
		return notify.Nop{}
	}
	tg, err := notify.NewTelegram(a.cfg.Notify, a.logger)
	if err != nil {
		a.logger.Warn("初始化 Telegram 失败，通知功能关闭", zap.Error(err))
		return notify.Nop{}
	}
	return tg
}
