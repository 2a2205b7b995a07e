package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"trading-bot/internal/config"
)

// Telegram 将交易与异常事件推送到 Telegram 会话。
type Telegram struct {
	bot            *tgbot.BotAPI
	chatID         int64
	heartbeatEvery time.Duration
	logger         *zap.Logger

	mu            sync.Mutex
	lastHeartbeat time.Time
}

// NewTelegram 按配置创建 Telegram 通知器。
func NewTelegram(cfg config.NotifyConfig, logger *zap.Logger) (*Telegram, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	bot, err := tgbot.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("初始化 Telegram Bot 失败: %w", err)
	}

	return &Telegram{
		bot:            bot,
		chatID:         cfg.TelegramChatID,
		heartbeatEvery: cfg.HeartbeatEvery,
		logger:         logger,
	}, nil
}

func (t *Telegram) send(text string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}

	msg := tgbot.NewMessage(t.chatID, text)
	msg.ParseMode = tgbot.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn("Telegram 发送失败", zap.Error(err))
	}
}

// NotifyStart 发送启动消息。
func (t *Telegram) NotifyStart(service string, paper bool, tickers []string, interval string) {
	tag := "LIVE"
	if paper {
		tag = "PAPER"
	}

	lines := []string{
		fmt.Sprintf("🚀 *%s* started", service),
		fmt.Sprintf("• mode: *%s*", tag),
		fmt.Sprintf("• tickers: *%s*", strings.Join(tickers, ", ")),
		fmt.Sprintf("• interval: *%s*", interval),
	}
	if t.heartbeatEvery > 0 {
		lines = append(lines, fmt.Sprintf("• heartbeat: every *%s*", t.heartbeatEvery))
	}

	t.send(strings.Join(lines, "\n"))
}

// NotifyTrade 发送成交通知。
func (t *Telegram) NotifyTrade(side, symbol string, qty int64, price, stop, take float64, reason string) {
	emoji := "⚪️"
	switch strings.ToLower(side) {
	case "buy":
		emoji = "🟢"
	case "sell":
		emoji = "🔴"
	}

	lines := []string{
		fmt.Sprintf("%s *%s* `%s` @ *%.4f*", emoji, strings.ToUpper(side), symbol, price),
		fmt.Sprintf("• qty: *%d*", qty),
	}
	if reason != "" {
		lines = append(lines, fmt.Sprintf("• reason: %s", reason))
	}
	if stop > 0 || take > 0 {
		lines = append(lines, fmt.Sprintf("• SL/TP: %.4f / %.4f", stop, take))
	}

	t.send(strings.Join(lines, "\n"))
}

// NotifyError 发送异常通知。
func (t *Telegram) NotifyError(message string, cause error) {
	if cause != nil {
		t.send(fmt.Sprintf("⚠️ *Error*: %s — %v", message, cause))
		return
	}
	t.send(fmt.Sprintf("⚠️ *Error*: %s", message))
}

// MaybeHeartbeat 按配置的间隔发送心跳，间隔为 0 时关闭。
func (t *Telegram) MaybeHeartbeat(text string) {
	if t.heartbeatEvery <= 0 {
		return
	}

	t.mu.Lock()
	now := time.Now()
	due := now.Sub(t.lastHeartbeat) >= t.heartbeatEvery
	if due {
		t.lastHeartbeat = now
	}
	t.mu.Unlock()

	if due {
		t.send(fmt.Sprintf("💜 %s", text))
	}
}

var _ Notifier = (*Telegram)(nil)
