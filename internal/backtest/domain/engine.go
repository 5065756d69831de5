// Package domain 提供跟单回测的核心引擎：确定性地重放带单交易员的历史成交，
// 把每笔成交按跟单者的资金与风控配置缩放为模拟成交，维护持仓台账与现金，
// 产出资金曲线、成交流水与汇总风险指标。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SimulationEngine 回测模拟引擎。单次调用内单线程同步执行，无共享可变状态，
// 不同回测之间可以自由并发。
type SimulationEngine struct{}

// NewSimulationEngine 创建模拟引擎
func NewSimulationEngine() *SimulationEngine {
	return &SimulationEngine{}
}

// Run 执行一次完整回测：校验输入，按时间顺序折叠领航成交序列，
// 窗口结束后对残留持仓强制平仓，最后计算指标并装配结果。
// 输入非法时返回错误且重放不会开始；重放过程中的资金不足、数量不足
// 等情况一律吸收为跳过或失败计数，绝不中断。
func (e *SimulationEngine) Run(ctx context.Context, cfg BacktestConfig, trades []LeaderTrade) (*BacktestResult, error) {
	// 取消只在入口检查；重放没有中途检查点，取消后部分结果应被丢弃
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateHistory(trades); err != nil {
		return nil, err
	}

	r := newReplay(cfg)
	for _, t := range trades {
		r.processEvent(t)
	}
	r.forceCloseAll()

	metrics := CalculateRiskMetrics(r.state.equityCurve, r.state.successfulTrades, r.state.failedTrades,
		cfg.InitialCapital, r.state.cash)

	return assembleResult(cfg, r.state, metrics)
}

// replayState 单次重放的全部可变状态，作为纯折叠的累加器
type replayState struct {
	cash             decimal.Decimal
	peakEquity       decimal.Decimal
	cumulativePnL    decimal.Decimal
	successfulTrades int
	failedTrades     int
	skippedEvents    int
	equityCurve      []EquityPoint
	tradeLedger      []SimulatedTrade
}

type replay struct {
	cfg    BacktestConfig
	ledger *PositionLedger
	state  replayState

	// 各标的最后一笔领航成交价，强制平仓时按此原始价格执行
	lastFillPrice map[string]decimal.Decimal
	lastTradeAt   time.Time
}

var one = decimal.NewFromInt(1)

func newReplay(cfg BacktestConfig) *replay {
	r := &replay{
		cfg:    cfg,
		ledger: NewPositionLedger(),
		state: replayState{
			cash:          cfg.InitialCapital,
			peakEquity:    cfg.InitialCapital,
			cumulativePnL: decimal.Zero,
		},
		lastFillPrice: make(map[string]decimal.Decimal),
		lastTradeAt:   cfg.StartTime,
	}

	// 初始资金点
	r.state.equityCurve = append(r.state.equityCurve, EquityPoint{
		Timestamp: cfg.StartTime,
		Equity:    cfg.InitialCapital,
		Drawdown:  0,
	})
	return r
}

// processEvent 处理一笔领航成交：按当前现金缩放数量后模拟执行。
// 数量不足一手与买入资金不足为静默跳过（既非成功也非失败）；
// 无持仓可平的卖出计为失败交易。
func (r *replay) processEvent(t LeaderTrade) {
	r.lastFillPrice[t.Symbol] = t.Price
	r.lastTradeAt = t.ExecutedAt

	execPrice := r.executionPrice(t.Side, t.Price)
	targetNotional := r.state.cash.Mul(r.cfg.PositionSizeFraction)
	quantity := targetNotional.Div(execPrice).Floor()
	if quantity.LessThan(one) {
		r.state.skippedEvents++
		return
	}

	switch t.Side {
	case SideBuy:
		r.executeBuy(t.ExecutedAt, t.Symbol, quantity, execPrice)
	case SideSell:
		r.executeSell(t.ExecutedAt, t.Symbol, quantity, execPrice)
	}
}

// executionPrice 滑点调整后的执行价：买入抬价，卖出压价
func (r *replay) executionPrice(side TradeSide, leaderPrice decimal.Decimal) decimal.Decimal {
	if side == SideBuy {
		return leaderPrice.Mul(one.Add(r.cfg.SlippageFraction))
	}
	return leaderPrice.Mul(one.Sub(r.cfg.SlippageFraction))
}

func (r *replay) executeBuy(ts time.Time, symbol string, quantity, execPrice decimal.Decimal) {
	cost := quantity.Mul(execPrice)
	commission := cost.Mul(r.cfg.CommissionFraction)
	total := cost.Add(commission)

	// 资金不足时整笔静默跳过，不做降档重算
	if r.state.cash.LessThan(total) {
		r.state.skippedEvents++
		return
	}

	r.state.cash = r.state.cash.Sub(total)
	r.ledger.ApplyBuy(symbol, quantity, execPrice)

	r.state.tradeLedger = append(r.state.tradeLedger, SimulatedTrade{
		ExecutedAt:    ts,
		Symbol:        symbol,
		Side:          SideBuy,
		Quantity:      quantity,
		Price:         execPrice,
		Notional:      cost,
		CumulativePnL: r.state.cumulativePnL,
	})
	r.appendEquityPoint(ts)
}

func (r *replay) executeSell(ts time.Time, symbol string, quantity, execPrice decimal.Decimal) {
	pos, ok := r.ledger.PositionOf(symbol)
	if !ok {
		r.state.failedTrades++
		return
	}

	// 最多只请求实际持有的数量，避免出现负持仓
	sellQty := decimal.Min(quantity, pos.Quantity)
	if r.ledger.ApplySell(symbol, sellQty).IsZero() {
		r.state.failedTrades++
		return
	}

	r.closePosition(ts, symbol, sellQty, execPrice, pos.AvgCost, false)
}

// closePosition 统一的平仓记账：普通卖出与强制平仓共用。
// 已实现盈亏按平仓前的持仓均价计算，计入手续费。
func (r *replay) closePosition(ts time.Time, symbol string, quantity, price, avgCost decimal.Decimal, forced bool) {
	proceeds := quantity.Mul(price)
	commission := proceeds.Mul(r.cfg.CommissionFraction)
	realized := price.Sub(avgCost).Mul(quantity).Sub(commission)

	r.state.cash = r.state.cash.Add(proceeds.Sub(commission))
	r.state.cumulativePnL = r.state.cumulativePnL.Add(realized)

	if realized.IsNegative() {
		r.state.failedTrades++
	} else {
		r.state.successfulTrades++
	}

	pnl := realized
	r.state.tradeLedger = append(r.state.tradeLedger, SimulatedTrade{
		ExecutedAt:    ts,
		Symbol:        symbol,
		Side:          SideSell,
		Quantity:      quantity,
		Price:         price,
		Notional:      proceeds,
		RealizedPnL:   &pnl,
		CumulativePnL: r.state.cumulativePnL,
		Forced:        forced,
	})
	r.appendEquityPoint(ts)
}

// forceCloseAll 窗口结束时清算全部残留持仓。
// 执行价取该标的最后一笔领航成交的原始价格，不做滑点调整；
// 数量即台账持有量，无需再做可平性检查。标的按字典序遍历保证确定性。
func (r *replay) forceCloseAll() {
	for _, symbol := range r.ledger.Symbols() {
		pos, ok := r.ledger.PositionOf(symbol)
		if !ok {
			continue
		}
		r.ledger.ApplySell(symbol, pos.Quantity)
		r.closePosition(r.lastTradeAt, symbol, pos.Quantity, r.lastFillPrice[symbol], pos.AvgCost, true)
	}
}

// appendEquityPoint 每笔实际执行的成交后追加一个资金点，并推进权益峰值
func (r *replay) appendEquityPoint(ts time.Time) {
	if r.state.cash.GreaterThan(r.state.peakEquity) {
		r.state.peakEquity = r.state.cash
	}
	drawdown := r.state.peakEquity.Sub(r.state.cash).Div(r.state.peakEquity).InexactFloat64()

	r.state.equityCurve = append(r.state.equityCurve, EquityPoint{
		Timestamp: ts,
		Equity:    r.state.cash,
		Drawdown:  drawdown,
	})
}
