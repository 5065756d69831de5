package domain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	windowStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
)

func baseConfig() BacktestConfig {
	return BacktestConfig{
		LeaderID:                "leader-1",
		StartTime:               windowStart,
		EndTime:                 windowEnd,
		InitialCapital:          d("10000"),
		PositionSizeFraction:    d("0.1"),
		MaxPositionSizeFraction: d("0.5"),
		SlippageFraction:        decimal.Zero,
		CommissionFraction:      decimal.Zero,
	}
}

func at(day int) time.Time {
	return windowStart.AddDate(0, 0, day)
}

func leaderTrade(day int, symbol string, side TradeSide, qty, price string) LeaderTrade {
	return LeaderTrade{
		ExecutedAt: at(day),
		Symbol:     symbol,
		Side:       side,
		Quantity:   d(qty),
		Price:      d(price),
	}
}

func TestRun_SingleBuyThenForcedCloseAtSamePrice(t *testing.T) {
	// 初始资金 10000，单笔比例 0.1：买入 100 股 @10 花费 1000，
	// 窗口结束按同价强平，资金回到 10000，收益率为零
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "AAPL", SideBuy, "100", "10"),
	}

	result, err := engine.Run(context.Background(), baseConfig(), trades)
	require.NoError(t, err)

	assert.True(t, result.FinalCapital.Equal(d("10000")), "final capital %s", result.FinalCapital)
	assert.True(t, result.TotalReturn.IsZero())
	assert.InDelta(t, 0.0, result.TotalReturnPercent, 1e-12)
	assert.Equal(t, 1, result.SuccessfulTrades)
	assert.Equal(t, 0, result.FailedTrades)
	assert.Equal(t, 1, result.TotalTrades)

	// 买入一笔 + 强平一笔
	require.Len(t, result.TradeLedger, 2)
	forced := result.TradeLedger[1]
	assert.True(t, forced.Forced)
	assert.Equal(t, SideSell, forced.Side)
	require.NotNil(t, forced.RealizedPnL)
	assert.True(t, forced.RealizedPnL.IsZero())

	// 初始点 + 两笔成交各一个资金点；买入后现金 9000，峰值 10000
	require.Len(t, result.EquityCurve, 3)
	assert.True(t, result.EquityCurve[1].Equity.Equal(d("9000")))
	assert.InDelta(t, 0.1, result.EquityCurve[1].Drawdown, 1e-12)
	assert.InDelta(t, 0.1, result.MaxDrawdown, 1e-12)
}

func TestRun_SubUnitQuantitySkipsEverything(t *testing.T) {
	// 价格远高于可用预算，每个事件数量都不足一手：全部静默跳过
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "BTCUSDT", SideBuy, "1", "25000"),
		leaderTrade(2, "BTCUSDT", SideBuy, "2", "30000"),
		leaderTrade(3, "BTCUSDT", SideSell, "1", "28000"),
	}

	result, err := engine.Run(context.Background(), baseConfig(), trades)
	require.NoError(t, err)

	assert.True(t, result.FinalCapital.Equal(d("10000")))
	assert.Equal(t, 0, result.TotalTrades)
	assert.Equal(t, 3, result.SkippedEvents)
	assert.Empty(t, result.TradeLedger)
	assert.InDelta(t, 0.0, result.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.0, result.SharpeRatio, 1e-12)
	require.Len(t, result.EquityCurve, 1, "only the initial equity point")
}

func TestRun_SellWithoutPositionIsFailedTrade(t *testing.T) {
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "TSLA", SideSell, "10", "100"),
	}

	result, err := engine.Run(context.Background(), baseConfig(), trades)
	require.NoError(t, err)

	assert.True(t, result.FinalCapital.Equal(d("10000")), "cash must be untouched")
	assert.Equal(t, 1, result.FailedTrades)
	assert.Equal(t, 0, result.SuccessfulTrades)
	assert.Empty(t, result.TradeLedger, "rejected sells append no ledger entry")
	assert.InDelta(t, 0.0, result.WinRate, 1e-12)
}

func TestRun_WeightedAverageCostOnFullClose(t *testing.T) {
	// 比例 0.2：买 200 @10（成本 2000），再买 40 @40（成本 1600），
	// 均价 = 3600/240 = 15。强平按最后一笔领航价 40 执行：
	// 盈亏 = (40-15)*240 = 6000，既不是 10 也不是 40 的单价口径
	cfg := baseConfig()
	cfg.PositionSizeFraction = d("0.2")
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "AAPL", SideBuy, "500", "10"),
		leaderTrade(2, "AAPL", SideBuy, "500", "40"),
	}

	result, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)

	require.Len(t, result.TradeLedger, 3)
	forced := result.TradeLedger[2]
	require.NotNil(t, forced.RealizedPnL)
	assert.True(t, forced.RealizedPnL.Equal(d("6000")), "realized pnl %s", forced.RealizedPnL)
	assert.True(t, result.FinalCapital.Equal(d("16000")), "final capital %s", result.FinalCapital)
	assert.InDelta(t, 60.0, result.TotalReturnPercent, 1e-9)
}

func TestRun_PartialSellUsesSlippageAndAvgCost(t *testing.T) {
	// 比例 0.5：买 500 @10，现金 5000。领航卖出 @12：
	// 预算 2500/12 → 208 股，部分平仓，盈亏 (12-10)*208 = 416。
	// 剩余 292 股强平 @12：盈亏 584，累计 1000
	cfg := baseConfig()
	cfg.PositionSizeFraction = d("0.5")
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "AAPL", SideBuy, "1000", "10"),
		leaderTrade(2, "AAPL", SideSell, "1000", "12"),
	}

	result, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)

	require.Len(t, result.TradeLedger, 3)

	sell := result.TradeLedger[1]
	assert.False(t, sell.Forced)
	assert.True(t, sell.Quantity.Equal(d("208")))
	require.NotNil(t, sell.RealizedPnL)
	assert.True(t, sell.RealizedPnL.Equal(d("416")))

	forced := result.TradeLedger[2]
	assert.True(t, forced.Forced)
	assert.True(t, forced.Quantity.Equal(d("292")))
	require.NotNil(t, forced.RealizedPnL)
	assert.True(t, forced.RealizedPnL.Equal(d("584")))
	assert.True(t, forced.CumulativePnL.Equal(d("1000")))

	assert.True(t, result.FinalCapital.Equal(d("11000")))
	assert.Equal(t, 2, result.SuccessfulTrades)
}

func TestRun_InsufficientFundsIsSilentSkip(t *testing.T) {
	// 比例 1.0 叠加手续费：成本 10000 + 佣金 100 超出现金，整笔静默跳过
	cfg := baseConfig()
	cfg.PositionSizeFraction = d("1")
	cfg.MaxPositionSizeFraction = d("1")
	cfg.CommissionFraction = d("0.01")
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "AAPL", SideBuy, "1000", "10"),
	}

	result, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)

	assert.True(t, result.FinalCapital.Equal(d("10000")))
	assert.Equal(t, 1, result.SkippedEvents)
	assert.Equal(t, 0, result.TotalTrades)
	assert.Empty(t, result.TradeLedger)
}

func TestRun_SlippageRaisesBuyPriceAndCommissionCharged(t *testing.T) {
	// 滑点 0.05：执行价 10.5，预算 1000 → 95 股，成本 997.5，
	// 佣金 1% = 9.975，现金 = 10000 - 1007.475 = 8992.525
	cfg := baseConfig()
	cfg.SlippageFraction = d("0.05")
	cfg.CommissionFraction = d("0.01")
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "AAPL", SideBuy, "100", "10"),
	}

	result, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)

	require.NotEmpty(t, result.TradeLedger)
	buy := result.TradeLedger[0]
	assert.True(t, buy.Price.Equal(d("10.5")))
	assert.True(t, buy.Quantity.Equal(d("95")))
	assert.True(t, result.EquityCurve[1].Equity.Equal(d("8992.525")), "equity %s", result.EquityCurve[1].Equity)
}

func TestRun_ForcedCloseIsNoOpWhenFlat(t *testing.T) {
	// 领航卖出的缩放数量覆盖全部持仓（500 股 @5 预算恰好 500 股）：
	// 窗口结束时已无持仓，强平不产生任何成交
	cfg := baseConfig()
	cfg.PositionSizeFraction = d("0.5")
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "AAPL", SideBuy, "1000", "10"),
		leaderTrade(2, "AAPL", SideSell, "1000", "5"),
	}

	result, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)

	require.Len(t, result.TradeLedger, 2)
	for _, tr := range result.TradeLedger {
		assert.False(t, tr.Forced)
	}
	// 亏损平仓计为失败交易
	assert.Equal(t, 1, result.FailedTrades)
	assert.Equal(t, 0, result.SuccessfulTrades)
	assert.True(t, result.FinalCapital.Equal(d("7500")))
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	cfg := baseConfig()
	cfg.PositionSizeFraction = d("0.3")
	cfg.SlippageFraction = d("0.002")
	cfg.CommissionFraction = d("0.001")
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "BTCUSDT", SideBuy, "2", "100"),
		leaderTrade(2, "ETHUSDT", SideBuy, "10", "50"),
		leaderTrade(3, "BTCUSDT", SideSell, "1", "110"),
		leaderTrade(4, "ETHUSDT", SideBuy, "5", "45"),
		leaderTrade(5, "BTCUSDT", SideBuy, "1", "105"),
		leaderTrade(6, "ETHUSDT", SideSell, "15", "55"),
	}

	first, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same input must replay to an identical result")
}

func TestRun_CashConservation(t *testing.T) {
	// 现金只有两条通道：买入扣 成本+佣金，卖出加 所得-佣金
	cfg := baseConfig()
	cfg.PositionSizeFraction = d("0.25")
	cfg.CommissionFraction = d("0.002")
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "AAPL", SideBuy, "100", "20"),
		leaderTrade(2, "MSFT", SideBuy, "50", "40"),
		leaderTrade(3, "AAPL", SideSell, "100", "22"),
		leaderTrade(4, "MSFT", SideBuy, "25", "38"),
	}

	result, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)

	expected := cfg.InitialCapital
	for _, tr := range result.TradeLedger {
		commission := tr.Notional.Mul(cfg.CommissionFraction)
		if tr.Side == SideBuy {
			expected = expected.Sub(tr.Notional.Add(commission))
		} else {
			expected = expected.Add(tr.Notional.Sub(commission))
		}
	}
	assert.True(t, result.FinalCapital.Equal(expected),
		"final capital %s, expected %s", result.FinalCapital, expected)
}

func TestRun_DrawdownAlwaysInUnitInterval(t *testing.T) {
	cfg := baseConfig()
	cfg.PositionSizeFraction = d("0.6")
	cfg.MaxPositionSizeFraction = d("1")
	engine := NewSimulationEngine()
	trades := []LeaderTrade{
		leaderTrade(1, "AAPL", SideBuy, "100", "10"),
		leaderTrade(2, "AAPL", SideBuy, "100", "11"),
		leaderTrade(3, "AAPL", SideSell, "50", "9"),
		leaderTrade(4, "AAPL", SideBuy, "10", "12"),
	}

	result, err := engine.Run(context.Background(), cfg, trades)
	require.NoError(t, err)

	running := 0.0
	for _, p := range result.EquityCurve {
		assert.GreaterOrEqual(t, p.Drawdown, 0.0)
		assert.LessOrEqual(t, p.Drawdown, 1.0)
		if p.Drawdown > running {
			running = p.Drawdown
		}
	}
	assert.InDelta(t, running, result.MaxDrawdown, 1e-12)
}

func TestRun_InputValidation(t *testing.T) {
	engine := NewSimulationEngine()
	valid := []LeaderTrade{leaderTrade(1, "AAPL", SideBuy, "1", "10")}

	tests := []struct {
		name    string
		cfg     func() BacktestConfig
		trades  []LeaderTrade
		wantErr error
	}{
		{
			name:    "empty history",
			cfg:     baseConfig,
			trades:  nil,
			wantErr: ErrEmptyHistory,
		},
		{
			name: "unsorted history",
			cfg:  baseConfig,
			trades: []LeaderTrade{
				leaderTrade(2, "AAPL", SideBuy, "1", "10"),
				leaderTrade(1, "AAPL", SideBuy, "1", "11"),
			},
			wantErr: ErrUnsortedHistory,
		},
		{
			name: "non-positive quantity",
			cfg:  baseConfig,
			trades: []LeaderTrade{
				leaderTrade(1, "AAPL", SideBuy, "0", "10"),
			},
			wantErr: ErrInvalidTrade,
		},
		{
			name: "non-positive price",
			cfg:  baseConfig,
			trades: []LeaderTrade{
				leaderTrade(1, "AAPL", SideBuy, "1", "0"),
			},
			wantErr: ErrInvalidTrade,
		},
		{
			name: "non-positive capital",
			cfg: func() BacktestConfig {
				c := baseConfig()
				c.InitialCapital = decimal.Zero
				return c
			},
			trades:  valid,
			wantErr: ErrInvalidConfig,
		},
		{
			name: "fraction above one",
			cfg: func() BacktestConfig {
				c := baseConfig()
				c.PositionSizeFraction = d("1.5")
				c.MaxPositionSizeFraction = d("2")
				return c
			},
			trades:  valid,
			wantErr: ErrInvalidConfig,
		},
		{
			name: "max fraction below fraction",
			cfg: func() BacktestConfig {
				c := baseConfig()
				c.MaxPositionSizeFraction = d("0.05")
				return c
			},
			trades:  valid,
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Run(context.Background(), tt.cfg(), tt.trades)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	engine := NewSimulationEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, baseConfig(), []LeaderTrade{leaderTrade(1, "AAPL", SideBuy, "1", "10")})
	require.ErrorIs(t, err, context.Canceled)
}
