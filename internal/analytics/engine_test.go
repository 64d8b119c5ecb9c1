package analytics

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysim/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine() *Engine {
	return NewEngine("run-1", Config{InitialBalance: 10000}, testLogger())
}

func fill(strategy string, side domain.OrderSide, price, size float64) domain.Fill {
	return domain.Fill{
		OrderID:    "ord-000001",
		StrategyID: strategy,
		Platform:   domain.PlatformPolymarket,
		MarketID:   "mkt-1",
		Side:       side,
		Price:      price,
		Size:       size,
		FilledAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRoundTripClosesOnZeroPosition(t *testing.T) {
	e := newTestEngine()

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 10000-4)
	snap := e.OnFill(fill("s1", domain.OrderSideSell, 0.50, 10), 10000+1)

	require.Equal(t, 1, snap.TotalTrades)
	assert.Equal(t, 1, snap.WinningTrades)
	assert.InDelta(t, 1.0, snap.RealizedPnL, 1e-9) // 10 * (0.50 - 0.40)
	assert.InDelta(t, 1.0, snap.WinRate, 1e-9)
	assert.Zero(t, snap.UnrealizedPnL)

	trades := e.ClosedTrades()
	require.Len(t, trades, 1)
	assert.InDelta(t, 0.40, trades[0].EntryPrice, 1e-9)
	assert.InDelta(t, 0.50, trades[0].ExitPrice, 1e-9)
	assert.Equal(t, domain.OrderSideBuy, trades[0].Side)
}

func TestAverageCostBasisAcrossAdds(t *testing.T) {
	e := newTestEngine()

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 9996)
	e.OnFill(fill("s1", domain.OrderSideBuy, 0.50, 10), 9991)
	// avg cost is 0.45; closing 20 at 0.48 realizes 20 * 0.03
	snap := e.OnFill(fill("s1", domain.OrderSideSell, 0.48, 20), 10000.6)

	require.Equal(t, 1, snap.TotalTrades)
	assert.InDelta(t, 0.6, snap.RealizedPnL, 1e-9)
}

func TestPositionFlipOpensNewRoundTrip(t *testing.T) {
	e := newTestEngine()

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 9996)
	// Sell 15: closes the long for +1.0, leaves a 5-contract short at 0.50.
	snap := e.OnFill(fill("s1", domain.OrderSideSell, 0.50, 15), 10003.5)

	require.Equal(t, 1, snap.TotalTrades)
	assert.InDelta(t, 1.0, snap.RealizedPnL, 1e-9)

	// Buying the short back at 0.45 realizes 5 * 0.05.
	snap = e.OnFill(fill("s1", domain.OrderSideBuy, 0.45, 5), 10001.25)
	require.Equal(t, 2, snap.TotalTrades)
	assert.InDelta(t, 1.25, snap.RealizedPnL, 1e-9)
	assert.Equal(t, 2, snap.WinningTrades)
}

func TestUnrealizedMarksToMid(t *testing.T) {
	e := newTestEngine()

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 9996)
	e.ObserveEvent(domain.MarketEvent{
		Platform:  domain.PlatformPolymarket,
		MarketID:  "mkt-1",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
		Kind:      domain.EventKindBookUpdate,
	}, domain.OrderBookState{BestBid: 0.49, BestAsk: 0.51})

	snap := e.Snapshot("s1")
	assert.InDelta(t, 1.0, snap.UnrealizedPnL, 1e-9) // 10 * (0.50 - 0.40)
	assert.InDelta(t, 1.0, snap.TotalPnL, 1e-9)
	assert.InDelta(t, 1.0/10000, snap.TotalReturn, 1e-12)
	assert.InDelta(t, 9996+5.0, snap.Equity, 1e-9)
}

func TestTotalReturnTracksTotalPnL(t *testing.T) {
	e := newTestEngine()

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 100), 9960)
	snap := e.OnFill(fill("s1", domain.OrderSideSell, 0.60, 100), 10020)

	assert.InDelta(t, 20.0, snap.TotalPnL, 1e-9)
	assert.InDelta(t, 20.0/10000, snap.TotalReturn, 1e-12)
}

func TestSharpeIsUndefinedWithFewSamples(t *testing.T) {
	e := newTestEngine()

	snap := e.Snapshot("s1")
	assert.Nil(t, snap.SharpeRatio, "no samples")

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 9996)
	snap = e.OnFill(fill("s1", domain.OrderSideSell, 0.50, 10), 10001)
	assert.Nil(t, snap.SharpeRatio, "one sample")
}

func TestSharpeIsUndefinedWithZeroStdev(t *testing.T) {
	e := newTestEngine()

	// Two identical round trips: zero variance in return samples.
	for i := 0; i < 2; i++ {
		e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 9996)
		e.OnFill(fill("s1", domain.OrderSideSell, 0.50, 10), 10001)
	}
	snap := e.Snapshot("s1")
	assert.Equal(t, 2, snap.TotalTrades)
	assert.Nil(t, snap.SharpeRatio)
}

func TestSharpeDefinedWithVariedSamples(t *testing.T) {
	e := newTestEngine()

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 9996)
	e.OnFill(fill("s1", domain.OrderSideSell, 0.50, 10), 10001)
	e.OnFill(fill("s1", domain.OrderSideBuy, 0.50, 10), 9996)
	e.OnFill(fill("s1", domain.OrderSideSell, 0.45, 10), 9999.5)

	snap := e.Snapshot("s1")
	require.NotNil(t, snap.SharpeRatio)
	assert.Equal(t, 2, snap.TotalTrades)
}

func TestProfitFactorUndefinedWithoutLosses(t *testing.T) {
	e := newTestEngine()

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 9996)
	snap := e.OnFill(fill("s1", domain.OrderSideSell, 0.50, 10), 10001)
	assert.Nil(t, snap.ProfitFactor, "zero gross loss")

	e.OnFill(fill("s1", domain.OrderSideBuy, 0.50, 10), 9996)
	snap = e.OnFill(fill("s1", domain.OrderSideSell, 0.40, 10), 10000)
	require.NotNil(t, snap.ProfitFactor)
	assert.InDelta(t, 1.0, *snap.ProfitFactor, 1e-9)
}

func TestMaxDrawdownTracksEquityTrough(t *testing.T) {
	e := newTestEngine()

	// Win first (peak rises), then a larger loss (trough below peak).
	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 100), 9960)
	e.OnFill(fill("s1", domain.OrderSideSell, 0.60, 100), 10020)
	e.OnFill(fill("s1", domain.OrderSideBuy, 0.60, 100), 9960)
	snap := e.OnFill(fill("s1", domain.OrderSideSell, 0.40, 100), 10000)

	assert.Greater(t, snap.MaxDrawdown, 0.0)
	assert.InDelta(t, 20.0/10020.0, snap.MaxDrawdown, 1e-9)
}

func TestStrategiesAreIsolated(t *testing.T) {
	e := newTestEngine()

	e.OnFill(fill("alpha", domain.OrderSideBuy, 0.40, 10), 9996)
	e.OnFill(fill("alpha", domain.OrderSideSell, 0.50, 10), 10001)
	e.OnFill(fill("beta", domain.OrderSideBuy, 0.60, 10), 9994)

	final := e.Final()
	require.Len(t, final, 2)
	assert.Equal(t, "alpha", final[0].StrategyID)
	assert.Equal(t, 1, final[0].TotalTrades)
	assert.Equal(t, "beta", final[1].StrategyID)
	assert.Zero(t, final[1].TotalTrades)
}

func TestRenderReport(t *testing.T) {
	e := newTestEngine()
	e.OnFill(fill("s1", domain.OrderSideBuy, 0.40, 10), 9996)
	e.OnFill(fill("s1", domain.OrderSideSell, 0.50, 10), 10001)

	report := RenderReport("run-1", e.Final())
	assert.True(t, strings.Contains(report, "PERFORMANCE REPORT"))
	assert.True(t, strings.Contains(report, "Strategy: s1"))
	assert.True(t, strings.Contains(report, "Win Rate:        100.00%"))
	assert.True(t, strings.Contains(report, "Total Return:    0.01%"))
	assert.True(t, strings.Contains(report, "Sharpe Ratio:    n/a"))
}
