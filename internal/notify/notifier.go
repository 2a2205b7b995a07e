package notify

// Notifier 为通知下沉接口，协调器与主循环只依赖该抽象。
type Notifier interface {
	// NotifyStart 在进程启动时发送一次。
	NotifyStart(service string, paper bool, tickers []string, interval string)
	// NotifyTrade 报告一笔已被券商接受的委托。
	NotifyTrade(side, symbol string, qty int64, price, stop, take float64, reason string)
	// NotifyError 报告需要运维关注的失败。
	NotifyError(message string, cause error)
	// MaybeHeartbeat 按配置的间隔发送心跳，间隔未到时为空操作。
	MaybeHeartbeat(text string)
}

// Nop 为空实现，测试与未配置通知渠道时使用。
type Nop struct{}

func (Nop) NotifyStart(string, bool, []string, string)                           {}
func (Nop) NotifyTrade(string, string, int64, float64, float64, float64, string) {}
func (Nop) NotifyError(string, error)                                            {}
func (Nop) MaybeHeartbeat(string)                                                {}

var _ Notifier = Nop{}
