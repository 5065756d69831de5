package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPositionLedger_ApplyBuyCreatesPosition(t *testing.T) {
	ledger := NewPositionLedger()

	ledger.ApplyBuy("BTCUSDT", d("10"), d("25000"))

	pos, ok := ledger.PositionOf("BTCUSDT")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AvgCost.Equal(d("25000")))
}

func TestPositionLedger_ApplyBuyUpdatesWeightedAverage(t *testing.T) {
	ledger := NewPositionLedger()

	ledger.ApplyBuy("AAPL", d("200"), d("10"))
	ledger.ApplyBuy("AAPL", d("40"), d("40"))

	pos, ok := ledger.PositionOf("AAPL")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(d("240")))
	// (200*10 + 40*40) / 240 = 15
	assert.True(t, pos.AvgCost.Equal(d("15")), "avg cost %s", pos.AvgCost)
}

func TestPositionLedger_ApplySellRejectsUnknownSymbol(t *testing.T) {
	ledger := NewPositionLedger()

	closeable := ledger.ApplySell("TSLA", d("1"))

	assert.True(t, closeable.IsZero())
	assert.Equal(t, 0, ledger.Len())
}

func TestPositionLedger_ApplySellRejectsOversized(t *testing.T) {
	ledger := NewPositionLedger()
	ledger.ApplyBuy("AAPL", d("100"), d("10"))

	closeable := ledger.ApplySell("AAPL", d("101"))

	assert.True(t, closeable.IsZero())
	pos, ok := ledger.PositionOf("AAPL")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(d("100")), "rejected sell must not mutate the position")
}

func TestPositionLedger_ApplySellPartialKeepsAvgCost(t *testing.T) {
	ledger := NewPositionLedger()
	ledger.ApplyBuy("AAPL", d("100"), d("10"))

	closeable := ledger.ApplySell("AAPL", d("30"))

	assert.True(t, closeable.Equal(d("30")))
	pos, ok := ledger.PositionOf("AAPL")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(d("70")))
	assert.True(t, pos.AvgCost.Equal(d("10")), "sell must not change avg cost")
}

func TestPositionLedger_ApplySellToZeroRemovesPosition(t *testing.T) {
	ledger := NewPositionLedger()
	ledger.ApplyBuy("AAPL", d("100"), d("10"))

	closeable := ledger.ApplySell("AAPL", d("100"))

	assert.True(t, closeable.Equal(d("100")))
	_, ok := ledger.PositionOf("AAPL")
	assert.False(t, ok)
	assert.Equal(t, 0, ledger.Len())
}

func TestPositionLedger_SymbolsSorted(t *testing.T) {
	ledger := NewPositionLedger()
	ledger.ApplyBuy("ETHUSDT", d("1"), d("2000"))
	ledger.ApplyBuy("BTCUSDT", d("1"), d("25000"))
	ledger.ApplyBuy("ADAUSDT", d("1"), d("1"))

	assert.Equal(t, []string{"ADAUSDT", "BTCUSDT", "ETHUSDT"}, ledger.Symbols())
}
