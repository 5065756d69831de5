package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func curveOf(equities ...string) []EquityPoint {
	curve := make([]EquityPoint, len(equities))
	peak := d("0")
	for i, e := range equities {
		eq := d(e)
		if eq.GreaterThan(peak) {
			peak = eq
		}
		curve[i] = EquityPoint{
			Timestamp: time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Equity:    eq,
			Drawdown:  peak.Sub(eq).Div(peak).InexactFloat64(),
		}
	}
	return curve
}

func TestCalculateRiskMetrics_TotalReturn(t *testing.T) {
	m := CalculateRiskMetrics(curveOf("10000", "12000"), 1, 0, d("10000"), d("12000"))

	assert.True(t, m.TotalReturn.Equal(d("2000")))
	assert.InDelta(t, 20.0, m.TotalReturnPercent, 1e-9)
}

func TestCalculateRiskMetrics_MaxDrawdownNeedsTwoPoints(t *testing.T) {
	m := CalculateRiskMetrics(curveOf("10000"), 0, 0, d("10000"), d("10000"))
	assert.InDelta(t, 0.0, m.MaxDrawdown, 1e-12)
}

func TestCalculateRiskMetrics_MaxDrawdownIsCurveMaximum(t *testing.T) {
	// 峰值 12000，谷值 9000：回撤 3000/12000 = 0.25
	m := CalculateRiskMetrics(curveOf("10000", "12000", "9000", "11000"), 0, 0, d("10000"), d("11000"))
	assert.InDelta(t, 0.25, m.MaxDrawdown, 1e-12)
}

func TestCalculateRiskMetrics_SharpeZeroWhenConstant(t *testing.T) {
	// 收益率全为零，标准差为零时夏普定义为 0
	m := CalculateRiskMetrics(curveOf("10000", "10000", "10000"), 0, 0, d("10000"), d("10000"))
	assert.InDelta(t, 0.0, m.SharpeRatio, 1e-12)
}

func TestCalculateRiskMetrics_SharpeZeroWhenTooFewReturns(t *testing.T) {
	m := CalculateRiskMetrics(curveOf("10000", "11000"), 1, 0, d("10000"), d("11000"))
	assert.InDelta(t, 0.0, m.SharpeRatio, 1e-12)
}

func TestCalculateRiskMetrics_SharpeSymmetricMoves(t *testing.T) {
	// 收益率 [+0.1, -0.1]：均值 0 → 夏普 0；再偏一点应为正
	m := CalculateRiskMetrics(curveOf("10000", "11000", "9900"), 0, 0, d("10000"), d("9900"))
	assert.InDelta(t, 0.0, m.SharpeRatio, 1e-12)

	up := CalculateRiskMetrics(curveOf("10000", "11000", "12100"), 0, 0, d("10000"), d("12100"))
	assert.InDelta(t, 0.0, up.SharpeRatio, 1e-12, "equal returns have zero stddev")

	mixed := CalculateRiskMetrics(curveOf("10000", "11000", "11550"), 0, 0, d("10000"), d("11550"))
	assert.Greater(t, mixed.SharpeRatio, 0.0)
}

func TestCalculateRiskMetrics_WinRate(t *testing.T) {
	tests := []struct {
		name       string
		successful int
		failed     int
		want       float64
	}{
		{"no trades", 0, 0, 0},
		{"all wins", 4, 0, 1},
		{"mixed", 3, 1, 0.75},
		{"all losses", 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := CalculateRiskMetrics(curveOf("10000", "10500"), tt.successful, tt.failed, d("10000"), d("10500"))
			assert.InDelta(t, tt.want, m.WinRate, 1e-12)
		})
	}
}
