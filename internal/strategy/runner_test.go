package strategy

import (
	"context"
	"errors"
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

type scripted struct {
	name    string
	signals []domain.Signal
	errs    []error
	calls   int
}

func (s *scripted) Name() string                   { return s.name }
func (s *scripted) Init(ctx context.Context) error { return nil }
func (s *scripted) Close() error                   { return nil }

func (s *scripted) Handle(ctx context.Context, event domain.MarketEvent, book domain.OrderBookState) ([]domain.Signal, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.signals, nil
}

func testEvent() domain.MarketEvent {
	return domain.MarketEvent{
		Platform:  domain.PlatformPolymarket,
		MarketID:  "mkt-1",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:      domain.EventKindTrade,
		Trade:     &domain.TradeEvent{Price: 0.5, Size: 1, Side: domain.OrderSideBuy},
	}
}

func TestDispatchCollectsSignalsInRegistrationOrder(t *testing.T) {
	r := NewRunner(testLogger())
	r.Register(&scripted{name: "first", signals: []domain.Signal{{MarketID: "a"}}})
	r.Register(&scripted{name: "second", signals: []domain.Signal{{MarketID: "b"}, {MarketID: "c"}}})

	signals := r.Dispatch(context.Background(), testEvent(), domain.OrderBookState{})
	require.Len(t, signals, 3)
	assert.Equal(t, "first", signals[0].StrategyID)
	assert.Equal(t, "second", signals[1].StrategyID)
	assert.Equal(t, []string{"a", "b", "c"},
		[]string{signals[0].MarketID, signals[1].MarketID, signals[2].MarketID})
}

func TestSuspensionAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("boom")
	flaky := &scripted{name: "flaky", errs: []error{boom, boom, boom}}
	steady := &scripted{name: "steady", signals: []domain.Signal{{MarketID: "x"}}}

	r := NewRunner(testLogger())
	r.Register(flaky)
	r.Register(steady)

	for i := 0; i < 5; i++ {
		signals := r.Dispatch(context.Background(), testEvent(), domain.OrderBookState{})
		assert.Len(t, signals, 1, "healthy instance keeps emitting")
	}

	assert.ErrorIs(t, r.Status("flaky"), domain.ErrStrategySuspended)
	assert.NoError(t, r.Status("steady"))
	assert.ErrorIs(t, r.Status("never-registered"), domain.ErrNotFound)
	assert.Equal(t, MaxConsecutiveFailures, flaky.calls, "suspended instance no longer dispatched")
	assert.Equal(t, 5, steady.calls)
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	boom := errors.New("boom")
	// Two failures, one success, two more failures: never three in a row.
	flaky := &scripted{name: "flaky", errs: []error{boom, boom, nil, boom, boom}}

	r := NewRunner(testLogger())
	r.Register(flaky)

	for i := 0; i < 5; i++ {
		r.Dispatch(context.Background(), testEvent(), domain.OrderBookState{})
	}
	assert.NoError(t, r.Status("flaky"))
	assert.Equal(t, 5, flaky.calls)
}

func TestCopyTradingFollowsLargePrints(t *testing.T) {
	s := NewCopyTrading(CopyTradingConfig{MinTradeSize: 50, CopyRatio: 0.1, MaxOrderSize: 25})

	event := testEvent()
	event.Trade = &domain.TradeEvent{Price: 0.42, Size: 120, Side: domain.OrderSideSell}

	signals, err := s.Handle(context.Background(), event, domain.OrderBookState{})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalSell, signals[0].Type)
	assert.Equal(t, 0.42, signals[0].Price)
	assert.InDelta(t, 12.0, signals[0].Size, 1e-9)
	assert.InDelta(t, 1.0, signals[0].Confidence, 1e-9, "a print at twice the minimum is full conviction")

	event.Trade.Size = 10
	signals, err = s.Handle(context.Background(), event, domain.OrderBookState{})
	require.NoError(t, err)
	assert.Empty(t, signals, "small prints are ignored")
}

func TestMarketMakingQuotesWideSpreads(t *testing.T) {
	s := NewMarketMaking(MarketMakingConfig{MinSpread: 0.04, QuoteSize: 10, MaxInventory: 100, Improvement: 0.01})

	event := testEvent()
	event.Kind = domain.EventKindBookUpdate
	event.Book = &domain.BookUpdate{}
	book := domain.OrderBookState{
		Platform: event.Platform, MarketID: event.MarketID,
		BestBid: 0.40, BestAsk: 0.50, BidSize: 10, AskSize: 10,
	}

	signals, err := s.Handle(context.Background(), event, book)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, domain.SignalBuy, signals[0].Type)
	assert.InDelta(t, 0.41, signals[0].Price, 1e-9)
	assert.Equal(t, domain.SignalSell, signals[1].Type)
	assert.InDelta(t, 0.49, signals[1].Price, 1e-9)
	assert.Equal(t, 0.8, signals[0].Confidence)
	assert.Equal(t, 0.8, signals[1].Confidence)

	book.BestAsk = 0.42
	signals, err = s.Handle(context.Background(), event, book)
	require.NoError(t, err)
	assert.Empty(t, signals, "tight spreads are not quoted")
}

func TestMarketMakingRespectsInventoryCap(t *testing.T) {
	s := NewMarketMaking(MarketMakingConfig{MinSpread: 0.04, QuoteSize: 10, MaxInventory: 10, Improvement: 0.01})

	s.ObserveFill(domain.Fill{
		Platform: domain.PlatformPolymarket, MarketID: "mkt-1",
		Side: domain.OrderSideBuy, Price: 0.41, Size: 10,
	})

	event := testEvent()
	event.Kind = domain.EventKindBookUpdate
	event.Book = &domain.BookUpdate{}
	book := domain.OrderBookState{BestBid: 0.40, BestAsk: 0.50, BidSize: 10, AskSize: 10}

	signals, err := s.Handle(context.Background(), event, book)
	require.NoError(t, err)
	require.Len(t, signals, 1, "long to the cap: only the sell side quotes")
	assert.Equal(t, domain.SignalSell, signals[0].Type)
}

func TestAltDataSignalsOnSustainedDrift(t *testing.T) {
	s := NewAltData(AltDataConfig{Window: 3, DriftThreshold: 0.03, OrderSize: 5})

	event := testEvent()
	event.Kind = domain.EventKindBookUpdate
	event.Book = &domain.BookUpdate{}

	mids := []float64{0.50, 0.52, 0.55}
	var signals []domain.Signal
	for _, mid := range mids {
		book := domain.OrderBookState{
			BestBid: mid - 0.01, BestAsk: mid + 0.01, BidSize: 10, AskSize: 10,
		}
		out, err := s.Handle(context.Background(), event, book)
		require.NoError(t, err)
		signals = append(signals, out...)
	}

	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalBuy, signals[0].Type)
	assert.InDelta(t, 0.56, signals[0].Price, 1e-9)
	// 0.05 drift against a 0.03 threshold: conviction 0.05 / 0.06.
	assert.InDelta(t, 0.8333, signals[0].Confidence, 1e-3)
}

func TestAltDataRespectsConfidenceThreshold(t *testing.T) {
	s := NewAltData(AltDataConfig{
		Window: 3, DriftThreshold: 0.03, ConfidenceThreshold: 0.9, OrderSize: 5,
	})

	event := testEvent()
	event.Kind = domain.EventKindBookUpdate
	event.Book = &domain.BookUpdate{}

	// Same drift as above clears the drift threshold but not the 0.9
	// conviction bar, so no signal goes out.
	for _, mid := range []float64{0.50, 0.52, 0.55} {
		book := domain.OrderBookState{
			BestBid: mid - 0.01, BestAsk: mid + 0.01, BidSize: 10, AskSize: 10,
		}
		out, err := s.Handle(context.Background(), event, book)
		require.NoError(t, err)
		assert.Empty(t, out)
	}

	// A move past twice the threshold reaches full conviction.
	for _, mid := range []float64{0.50, 0.54, 0.58} {
		book := domain.OrderBookState{
			BestBid: mid - 0.01, BestAsk: mid + 0.01, BidSize: 10, AskSize: 10,
		}
		out, err := s.Handle(context.Background(), event, book)
		require.NoError(t, err)
		if len(out) > 0 {
			assert.InDelta(t, 1.0, out[0].Confidence, 1e-9)
			return
		}
	}
	t.Fatal("expected a signal once conviction reached the threshold")
}
