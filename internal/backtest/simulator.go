package backtest

// Simulator 以股数台账模拟账户，支持止盈止损出场。
type Simulator struct {
	cash  float64
	qty   float64 // 有符号持仓股数，负数为空头
	entry float64
	stop  float64
	take  float64

	lastEquity    float64
	equityHistory []float64
	returnHistory []float64
	tradeCount    int
}

func NewSimulator(initialEquity float64) *Simulator {
	if initialEquity <= 0 {
		initialEquity = 10000
	}
	return &Simulator{
		cash:          initialEquity,
		lastEquity:    initialEquity,
		equityHistory: []float64{initialEquity},
	}
}

// Advance 以最新价格检查止盈止损并记录净值。
// 止损优先于止盈，同一根K线同时触发时按保守路径处理。
func (s *Simulator) Advance(low, high, close float64) {
	if close <= 0 {
		return
	}

	if s.qty > 0 {
		switch {
		case s.stop > 0 && low <= s.stop:
			s.closeAt(s.stop)
		case s.take > 0 && high >= s.take:
			s.closeAt(s.take)
		}
	} else if s.qty < 0 {
		switch {
		case s.stop > 0 && high >= s.stop:
			s.closeAt(s.stop)
		case s.take > 0 && low <= s.take:
			s.closeAt(s.take)
		}
	}

	equity := s.Equity(close)
	if s.lastEquity > 0 {
		s.returnHistory = append(s.returnHistory, equity/s.lastEquity-1)
	}
	s.equityHistory = append(s.equityHistory, equity)
	s.lastEquity = equity
}

// Open 在给定价格建仓。qty 为正数股数，空头由 short 标记。
func (s *Simulator) Open(qty, price, stop, take float64, short bool) {
	if qty <= 0 || price <= 0 {
		return
	}
	signed := qty
	if short {
		signed = -qty
	}
	s.cash -= signed * price
	s.qty = signed
	s.entry = price
	s.stop = stop
	s.take = take
	s.tradeCount++
}

// Close 以给定价格平掉当前持仓。
func (s *Simulator) Close(price float64) {
	if s.qty == 0 || price <= 0 {
		return
	}
	s.closeAt(price)
}

func (s *Simulator) closeAt(price float64) {
	s.cash += s.qty * price
	s.qty = 0
	s.entry = 0
	s.stop = 0
	s.take = 0
	s.tradeCount++
}

// Equity 返回按给定价格标记的账户净值。
func (s *Simulator) Equity(price float64) float64 {
	return s.cash + s.qty*price
}

// PositionQty 返回有符号持仓股数。
func (s *Simulator) PositionQty() float64 {
	return s.qty
}

func (s *Simulator) TradeCount() int {
	return s.tradeCount
}

func (s *Simulator) EquityHistory() []float64 {
	return append([]float64(nil), s.equityHistory...)
}

func (s *Simulator) ReturnHistory() []float64 {
	return append([]float64(nil), s.returnHistory...)
}
