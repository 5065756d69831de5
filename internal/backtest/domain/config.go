package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BacktestConfig 跟单回测配置：描述跟单者的假想资金与风控参数，作为重放的唯一输入配置。
// 创建后不可变，结果中原样回显。
type BacktestConfig struct {
	LeaderID  string    `json:"leader_id"`  // 被跟单的带单交易员
	StartTime time.Time `json:"start_time"` // 回测窗口起点
	EndTime   time.Time `json:"end_time"`   // 回测窗口终点

	InitialCapital          decimal.Decimal `json:"initial_capital"`            // 初始资金，必须为正
	PositionSizeFraction    decimal.Decimal `json:"position_size_fraction"`     // 单笔开仓占用现金比例，(0,1]
	MaxPositionSizeFraction decimal.Decimal `json:"max_position_size_fraction"` // 单仓位上限比例
	StopLossFraction        decimal.Decimal `json:"stop_loss_fraction"`         // 止损比例，0 表示不启用
	TakeProfitFraction      decimal.Decimal `json:"take_profit_fraction"`       // 止盈比例，0 表示不启用
	SlippageFraction        decimal.Decimal `json:"slippage_fraction"`          // 滑点比例，≥0
	CommissionFraction      decimal.Decimal `json:"commission_fraction"`        // 手续费比例，≥0
}

// Validate 校验配置合法性，非法配置在重放开始前即被拒绝
func (c BacktestConfig) Validate() error {
	if c.LeaderID == "" {
		return fmt.Errorf("%w: leader_id is required", ErrInvalidConfig)
	}
	if !c.EndTime.After(c.StartTime) {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalidConfig)
	}
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: initial_capital must be positive, got %s", ErrInvalidConfig, c.InitialCapital)
	}
	one := decimal.NewFromInt(1)
	if !c.PositionSizeFraction.IsPositive() || c.PositionSizeFraction.GreaterThan(one) {
		return fmt.Errorf("%w: position_size_fraction must be in (0,1], got %s", ErrInvalidConfig, c.PositionSizeFraction)
	}
	if c.MaxPositionSizeFraction.LessThan(c.PositionSizeFraction) {
		return fmt.Errorf("%w: max_position_size_fraction %s is below position_size_fraction %s",
			ErrInvalidConfig, c.MaxPositionSizeFraction, c.PositionSizeFraction)
	}
	if c.StopLossFraction.IsNegative() {
		return fmt.Errorf("%w: stop_loss_fraction must not be negative", ErrInvalidConfig)
	}
	if c.TakeProfitFraction.IsNegative() {
		return fmt.Errorf("%w: take_profit_fraction must not be negative", ErrInvalidConfig)
	}
	if c.SlippageFraction.IsNegative() {
		return fmt.Errorf("%w: slippage_fraction must not be negative", ErrInvalidConfig)
	}
	if c.CommissionFraction.IsNegative() {
		return fmt.Errorf("%w: commission_fraction must not be negative", ErrInvalidConfig)
	}
	return nil
}
