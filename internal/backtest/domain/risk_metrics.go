package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// RiskMetrics 回测汇总风险/绩效指标
type RiskMetrics struct {
	TotalReturn        decimal.Decimal `json:"total_return"`         // 绝对收益
	TotalReturnPercent float64         `json:"total_return_percent"` // 收益率（%）
	MaxDrawdown        float64         `json:"max_drawdown"`         // 最大回撤比例
	SharpeRatio        float64         `json:"sharpe_ratio"`         // 逐步夏普比率，无年化、无无风险利率
	WinRate            float64         `json:"win_rate"`             // 胜率
}

// CalculateRiskMetrics 对完整资金曲线与重放计数做纯函数统计。
// 夏普比率基于相邻资金点的逐步收益率，使用总体标准差；标准差为零或
// 收益率样本不足两个时定义为 0。最大回撤在曲线不足两个点时为 0。
func CalculateRiskMetrics(curve []EquityPoint, successfulTrades, failedTrades int, initialCapital, finalCapital decimal.Decimal) RiskMetrics {
	totalReturn := finalCapital.Sub(initialCapital)
	totalReturnPercent := totalReturn.Div(initialCapital).InexactFloat64() * 100

	maxDrawdown := 0.0
	if len(curve) >= 2 {
		for _, p := range curve {
			if p.Drawdown > maxDrawdown {
				maxDrawdown = p.Drawdown
			}
		}
	}

	sharpe := sharpeRatio(curve)

	winRate := 0.0
	if total := successfulTrades + failedTrades; total > 0 {
		winRate = float64(successfulTrades) / float64(total)
	}

	return RiskMetrics{
		TotalReturn:        totalReturn,
		TotalReturnPercent: totalReturnPercent,
		MaxDrawdown:        maxDrawdown,
		SharpeRatio:        sharpe,
		WinRate:            winRate,
	}
}

// sharpeRatio 逐步收益率的均值除以总体标准差
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		// 不足两个收益率样本
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity.InexactFloat64()
		if prev == 0 {
			return 0
		}
		cur := curve[i].Equity.InexactFloat64()
		returns = append(returns, (cur-prev)/prev)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}
