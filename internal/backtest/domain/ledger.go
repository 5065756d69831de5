package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SimulatedPosition 跟单账户中某一标的的持仓，只由持仓台账在重放期间修改
type SimulatedPosition struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"` // 持有数量，≥0，不支持做空
	AvgCost  decimal.Decimal `json:"avg_cost"` // 持仓均价，买入按加权平均更新，卖出不变
}

// PositionLedger 持仓台账：按标的维护模拟持仓，采用均价成本法。
// 单次回测调用内独占使用，不做并发保护。
type PositionLedger struct {
	positions map[string]*SimulatedPosition
}

// NewPositionLedger 创建空台账
func NewPositionLedger() *PositionLedger {
	return &PositionLedger{
		positions: make(map[string]*SimulatedPosition),
	}
}

// ApplyBuy 买入：首次买入建仓，加仓时按加权平均更新均价
func (l *PositionLedger) ApplyBuy(symbol string, quantity, price decimal.Decimal) {
	pos, ok := l.positions[symbol]
	if !ok {
		l.positions[symbol] = &SimulatedPosition{
			Symbol:   symbol,
			Quantity: quantity,
			AvgCost:  price,
		}
		return
	}

	// 新均价 = (旧数量*旧均价 + 新数量*新价格) / (旧数量+新数量)
	totalQty := pos.Quantity.Add(quantity)
	totalCost := pos.Quantity.Mul(pos.AvgCost).Add(quantity.Mul(price))
	pos.AvgCost = totalCost.Div(totalQty)
	pos.Quantity = totalQty
}

// ApplySell 卖出：返回实际可平数量。持仓不存在或数量不足时整笔拒绝，返回零，
// 台账不发生任何变化；这是一笔失败交易而非错误。数量减到恰好为零时移除持仓。
func (l *PositionLedger) ApplySell(symbol string, quantity decimal.Decimal) decimal.Decimal {
	pos, ok := l.positions[symbol]
	if !ok || pos.Quantity.LessThan(quantity) {
		return decimal.Zero
	}

	pos.Quantity = pos.Quantity.Sub(quantity)
	if pos.Quantity.IsZero() {
		delete(l.positions, symbol)
	}
	return quantity
}

// PositionOf 查询某标的当前持仓
func (l *PositionLedger) PositionOf(symbol string) (SimulatedPosition, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return SimulatedPosition{}, false
	}
	return *pos, true
}

// Symbols 返回当前持仓标的，按字典序排序，保证遍历顺序确定
func (l *PositionLedger) Symbols() []string {
	symbols := make([]string, 0, len(l.positions))
	for s := range l.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Len 当前持仓标的数量
func (l *PositionLedger) Len() int {
	return len(l.positions)
}
