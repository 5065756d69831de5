package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide 买卖方向
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// LeaderTrade 带单交易员的一笔历史成交，由交易来源适配器按时间升序提供
type LeaderTrade struct {
	ExecutedAt time.Time       `json:"executed_at"` // 成交时间
	Symbol     string          `json:"symbol"`      // 标的
	Side       TradeSide       `json:"side"`        // BUY / SELL
	Quantity   decimal.Decimal `json:"quantity"`    // 成交数量，>0
	Price      decimal.Decimal `json:"price"`       // 成交价格，>0
}

// SimulatedTrade 跟单账户的一笔模拟成交，重放过程中按序追加
type SimulatedTrade struct {
	ExecutedAt    time.Time        `json:"executed_at"`              // 成交时间
	Symbol        string           `json:"symbol"`                   // 标的
	Side          TradeSide        `json:"side"`                     // BUY / SELL
	Quantity      decimal.Decimal  `json:"quantity"`                 // 执行数量
	Price         decimal.Decimal  `json:"price"`                    // 执行价格（含滑点；强平除外）
	Notional      decimal.Decimal  `json:"notional"`                 // 成交金额
	RealizedPnL   *decimal.Decimal `json:"realized_pnl,omitempty"`   // 已实现盈亏，仅平仓时存在
	CumulativePnL decimal.Decimal  `json:"cumulative_pnl"`           // 截至本笔的累计已实现盈亏
	Forced        bool             `json:"forced,omitempty"`         // 是否为窗口结束强制平仓
}

// ValidateHistory 校验领航成交序列：非空、字段合法、时间非降序。
// 引擎不做重排序，乱序输入视为致命输入错误。
func ValidateHistory(trades []LeaderTrade) error {
	if len(trades) == 0 {
		return ErrEmptyHistory
	}

	for i, t := range trades {
		if t.Symbol == "" {
			return fmt.Errorf("%w: trade %d has empty symbol", ErrInvalidTrade, i)
		}
		if t.Side != SideBuy && t.Side != SideSell {
			return fmt.Errorf("%w: trade %d has unknown side %q", ErrInvalidTrade, i, t.Side)
		}
		if !t.Quantity.IsPositive() {
			return fmt.Errorf("%w: trade %d has non-positive quantity %s", ErrInvalidTrade, i, t.Quantity)
		}
		if !t.Price.IsPositive() {
			return fmt.Errorf("%w: trade %d has non-positive price %s", ErrInvalidTrade, i, t.Price)
		}
		if i > 0 && t.ExecutedAt.Before(trades[i-1].ExecutedAt) {
			return fmt.Errorf("%w: trade %d precedes trade %d", ErrUnsortedHistory, i, i-1)
		}
	}
	return nil
}
