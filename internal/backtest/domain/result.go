package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint 资金曲线上的一个点：初始点一个，之后每笔实际执行的模拟成交追加一个。
// 权益在成交时刻按纯现金近似（持仓市值不计入）。
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`   // 现金权益
	Drawdown  float64         `json:"drawdown"` // 相对历史峰值的回撤比例
}

// BacktestResult 回测结果：配置回显、终值资金、风险指标、完整资金曲线与成交流水。
// 一旦产出即不可变，持久化与展示由调用方负责。
type BacktestResult struct {
	Config BacktestConfig `json:"config"`

	FinalCapital       decimal.Decimal `json:"final_capital"`
	TotalReturn        decimal.Decimal `json:"total_return"`
	TotalReturnPercent float64         `json:"total_return_percent"`
	MaxDrawdown        float64         `json:"max_drawdown"`
	SharpeRatio        float64         `json:"sharpe_ratio"`
	WinRate            float64         `json:"win_rate"`

	TotalTrades      int `json:"total_trades"`
	SuccessfulTrades int `json:"successful_trades"`
	FailedTrades     int `json:"failed_trades"`
	SkippedEvents    int `json:"skipped_events"`

	EquityCurve []EquityPoint    `json:"equity_curve"`
	TradeLedger []SimulatedTrade `json:"trade_ledger"`
}

// assembleResult 结果装配：把重放终态与风险指标打包为 BacktestResult。
// 只做字段搬运；资金曲线为空说明重放从未推进，视为致命错误。
func assembleResult(cfg BacktestConfig, state replayState, metrics RiskMetrics) (*BacktestResult, error) {
	if len(state.equityCurve) == 0 {
		return nil, ErrEmptyEquityCurve
	}

	return &BacktestResult{
		Config:             cfg,
		FinalCapital:       state.cash,
		TotalReturn:        metrics.TotalReturn,
		TotalReturnPercent: metrics.TotalReturnPercent,
		MaxDrawdown:        metrics.MaxDrawdown,
		SharpeRatio:        metrics.SharpeRatio,
		WinRate:            metrics.WinRate,
		TotalTrades:        state.successfulTrades + state.failedTrades,
		SuccessfulTrades:   state.successfulTrades,
		FailedTrades:       state.failedTrades,
		SkippedEvents:      state.skippedEvents,
		EquityCurve:        state.equityCurve,
		TradeLedger:        state.tradeLedger,
	}, nil
}
