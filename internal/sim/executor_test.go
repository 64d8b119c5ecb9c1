package sim

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysim/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor() (*Executor, *Ledger) {
	ledger := NewLedger(10000, 0)
	return NewExecutor(ledger, testLogger()), ledger
}

func buySignal(price, size float64) domain.Signal {
	return domain.Signal{
		StrategyID: "s1",
		Platform:   domain.PlatformPolymarket,
		MarketID:   "mkt-1",
		Type:       domain.SignalBuy,
		Price:      price,
		Size:       size,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func tradeAt(price, size float64) domain.MarketEvent {
	return domain.MarketEvent{
		Platform:  domain.PlatformPolymarket,
		MarketID:  "mkt-1",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC),
		Kind:      domain.EventKindTrade,
		Trade:     &domain.TradeEvent{Price: price, Size: size, Side: domain.OrderSideSell},
	}
}

func TestSubmitRejectsInvalidSignals(t *testing.T) {
	e, _ := newTestExecutor()
	book := domain.OrderBookState{BestBid: 0.50, BestAsk: 0.52, BidSize: 10, AskSize: 10}

	cases := []domain.Signal{
		buySignal(0.50, 0),
		buySignal(0.50, -5),
		buySignal(0, 10),
		buySignal(1.0, 10),
		buySignal(-0.1, 10),
	}
	for _, sig := range cases {
		_, err := e.Submit(sig, book)
		assert.ErrorIs(t, err, domain.ErrInvalidSignal)
	}

	bad := buySignal(0.50, 10)
	bad.Platform = "nyse"
	_, err := e.Submit(bad, book)
	assert.ErrorIs(t, err, domain.ErrInvalidSignal)

	for _, conf := range []float64{-0.1, 1.1} {
		sig := buySignal(0.50, 10)
		sig.Confidence = conf
		_, err := e.Submit(sig, book)
		assert.ErrorIs(t, err, domain.ErrInvalidSignal, "confidence outside [0, 1]")
	}
}

func TestCrossingBuyFillsAtAskPrice(t *testing.T) {
	e, ledger := newTestExecutor()
	book := domain.OrderBookState{BestBid: 0.50, BestAsk: 0.52, BidSize: 100, AskSize: 100}

	// Willing to pay 0.55 against a 0.52 ask: the fill price-improves.
	fills, err := e.Submit(buySignal(0.55, 10), book)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.InDelta(t, 0.52, fills[0].Price, 1e-9)
	assert.Equal(t, 10.0, fills[0].Size)

	order, ok := e.Order(fills[0].OrderID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)
	assert.InDelta(t, 10000-5.2, ledger.Cash("s1"), 1e-9)
	assert.Equal(t, 10.0, ledger.Position("s1", domain.PlatformPolymarket, "mkt-1"))
}

func TestCrossingBuyPartialFillRestsRemainder(t *testing.T) {
	e, _ := newTestExecutor()
	book := domain.OrderBookState{BestBid: 0.55, BestAsk: 0.60, BidSize: 100, AskSize: 3}

	fills, err := e.Submit(buySignal(0.60, 5), book)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.InDelta(t, 0.60, fills[0].Price, 1e-9)
	assert.Equal(t, 3.0, fills[0].Size)

	open := e.OpenOrders(domain.PlatformPolymarket, "mkt-1")
	require.Len(t, open, 1)
	assert.Equal(t, domain.OrderStatusPartiallyFilled, open[0].Status)
	assert.Equal(t, 2.0, open[0].Remaining)
}

func TestNonCrossingOrderRests(t *testing.T) {
	e, _ := newTestExecutor()
	book := domain.OrderBookState{BestBid: 0.50, BestAsk: 0.55, BidSize: 100, AskSize: 100}

	fills, err := e.Submit(buySignal(0.52, 10), book)
	require.NoError(t, err)
	assert.Empty(t, fills)

	open := e.OpenOrders(domain.PlatformPolymarket, "mkt-1")
	require.Len(t, open, 1)
	assert.Equal(t, domain.OrderStatusOpen, open[0].Status)
}

func TestRestingBuyFillsFromTradeAtOrThrough(t *testing.T) {
	e, _ := newTestExecutor()
	book := domain.OrderBookState{BestBid: 0.48, BestAsk: 0.55, BidSize: 100, AskSize: 100}

	_, err := e.Submit(buySignal(0.52, 10), book)
	require.NoError(t, err)

	// A print above the limit does not touch the order.
	fills := e.OnTrade(tradeAt(0.53, 10))
	assert.Empty(t, fills)

	// A print through the limit fills at the trade price, capped at the
	// trade's size.
	fills = e.OnTrade(tradeAt(0.51, 4))
	require.Len(t, fills, 1)
	assert.InDelta(t, 0.51, fills[0].Price, 1e-9)
	assert.Equal(t, 4.0, fills[0].Size)

	open := e.OpenOrders(domain.PlatformPolymarket, "mkt-1")
	require.Len(t, open, 1)
	assert.Equal(t, 6.0, open[0].Remaining)
}

func TestTradeAllocationIsPriceThenPlacementOrder(t *testing.T) {
	e, _ := newTestExecutor()
	book := domain.OrderBookState{BestBid: 0.40, BestAsk: 0.60, BidSize: 100, AskSize: 100}

	first, err := e.Submit(buySignal(0.50, 5), book)
	require.NoError(t, err)
	require.Empty(t, first)
	_, err = e.Submit(buySignal(0.52, 5), book) // better price, placed later
	require.NoError(t, err)
	_, err = e.Submit(buySignal(0.50, 5), book) // same price as the first
	require.NoError(t, err)

	fills := e.OnTrade(tradeAt(0.50, 8))
	require.Len(t, fills, 2)
	// The 0.52 bid has price priority; the remaining 3 go to the earliest
	// 0.50 order.
	assert.Equal(t, "ord-000002", fills[0].OrderID)
	assert.Equal(t, 5.0, fills[0].Size)
	assert.Equal(t, "ord-000001", fills[1].OrderID)
	assert.Equal(t, 3.0, fills[1].Size)
}

func TestCancelOpenClosesRestingOrders(t *testing.T) {
	e, _ := newTestExecutor()
	book := domain.OrderBookState{BestBid: 0.40, BestAsk: 0.60, BidSize: 100, AskSize: 100}

	_, err := e.Submit(buySignal(0.50, 5), book)
	require.NoError(t, err)
	assert.Equal(t, 1, e.CancelOpen())
	assert.Empty(t, e.OpenOrders(domain.PlatformPolymarket, "mkt-1"))

	fills := e.OnTrade(tradeAt(0.45, 10))
	assert.Empty(t, fills, "cancelled orders never fill")
}

func TestLedgerAppliesFees(t *testing.T) {
	ledger := NewLedger(10000, 0.01)
	e := NewExecutor(ledger, testLogger())
	book := domain.OrderBookState{BestBid: 0.50, BestAsk: 0.52, BidSize: 100, AskSize: 100}

	_, err := e.Submit(buySignal(0.55, 10), book)
	require.NoError(t, err)

	// notional 5.2, fee 0.052
	assert.InDelta(t, 10000-5.2-0.052, ledger.Cash("s1"), 1e-9)
}

func TestShortPositionsAllowed(t *testing.T) {
	e, ledger := newTestExecutor()
	book := domain.OrderBookState{BestBid: 0.50, BestAsk: 0.52, BidSize: 100, AskSize: 100}

	sell := buySignal(0.50, 10)
	sell.Type = domain.SignalSell
	fills, err := e.Submit(sell, book)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.InDelta(t, 0.50, fills[0].Price, 1e-9)
	assert.Equal(t, -10.0, ledger.Position("s1", domain.PlatformPolymarket, "mkt-1"))
	assert.InDelta(t, 10005, ledger.Cash("s1"), 1e-9)
}
