// Package analytics computes trading performance incrementally: every fill
// updates the round-trip tracker and the running statistics, so a snapshot
// is O(positions) at any point of the run with no replay of history.
package analytics

import (
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// Config tunes the engine.
type Config struct {
	// InitialBalance is each strategy's starting cash; also the denominator
	// for per-trade return samples.
	InitialBalance float64
	// Annualization scales the Sharpe ratio (sqrt of periods per year for
	// the chosen sampling). Zero keeps the per-trade Sharpe unscaled.
	Annualization float64
}

// position is one strategy's open exposure in a stream, carried at average
// cost. pnl accumulates realized P&L of the in-flight round trip.
type position struct {
	qty   float64 // signed; >0 long
	avg   float64
	pnl   float64
	since time.Time
}

// stratState is the per-strategy accumulator set. Return-sample variance is
// kept with Welford's recurrence so it never rescans closed trades.
type stratState struct {
	positions map[string]*position

	closed  int
	winners int
	losers  int

	realized    float64
	grossProfit float64
	grossLoss   float64

	cash float64

	// Welford state over per-trade return samples.
	n     int
	mean  float64
	m2    float64

	peak        float64
	maxDrawdown float64
}

// Engine is the run's analytics sink. Owned by the run loop; not
// goroutine-safe.
type Engine struct {
	cfg    Config
	runID  string
	logger *slog.Logger

	strategies map[string]*stratState
	order      []string // first-seen order, for stable reporting
	mids       map[string]float64
	eventTime  time.Time
	trades     []domain.ClosedTrade
}

// NewEngine returns an engine for one run.
func NewEngine(runID string, cfg Config, logger *slog.Logger) *Engine {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = 10000
	}
	return &Engine{
		cfg:        cfg,
		runID:      runID,
		logger:     logger.With(slog.String("component", "analytics")),
		strategies: make(map[string]*stratState),
		mids:       make(map[string]float64),
	}
}

func (e *Engine) state(strategyID string) *stratState {
	s, ok := e.strategies[strategyID]
	if !ok {
		s = &stratState{
			positions: make(map[string]*position),
			cash:      e.cfg.InitialBalance,
			peak:      e.cfg.InitialBalance,
		}
		e.strategies[strategyID] = s
		e.order = append(e.order, strategyID)
	}
	return s
}

// ObserveEvent keeps the mark-to-mid inputs current. Called for every event
// after the book tracker has applied it.
func (e *Engine) ObserveEvent(event domain.MarketEvent, book domain.OrderBookState) {
	if mid := book.MidPrice(); mid > 0 {
		e.mids[event.StreamKey()] = mid
	}
	e.eventTime = event.Timestamp
}

// OnFill folds one fill into the owning strategy's state. cash is the
// strategy's ledger balance after settlement. Returns the strategy's fresh
// snapshot.
func (e *Engine) OnFill(fill domain.Fill, cash float64) domain.PerformanceSnapshot {
	s := e.state(fill.StrategyID)
	s.cash = cash

	key := string(fill.Platform) + ":" + fill.MarketID
	pos, ok := s.positions[key]
	if !ok {
		pos = &position{}
		s.positions[key] = pos
	}

	signed := fill.Size
	if fill.Side == domain.OrderSideSell {
		signed = -fill.Size
	}
	e.applyToPosition(s, fill, pos, key, signed)

	e.updateDrawdown(s)
	return e.snapshot(fill.StrategyID, s)
}

// applyToPosition advances the average-cost round trip. A fill in the
// position's direction re-averages the basis; a fill against it realizes
// P&L, and a round trip closes when the net quantity reaches zero or flips.
func (e *Engine) applyToPosition(s *stratState, fill domain.Fill, pos *position, key string, signed float64) {
	if pos.qty == 0 || (pos.qty > 0) == (signed > 0) {
		openQty := math.Abs(pos.qty)
		addQty := math.Abs(signed)
		pos.avg = (openQty*pos.avg + addQty*fill.Price) / (openQty + addQty)
		if pos.qty == 0 {
			pos.since = fill.FilledAt
		}
		pos.qty += signed
		return
	}

	closing := math.Min(math.Abs(signed), math.Abs(pos.qty))
	var legPnL float64
	if pos.qty > 0 {
		legPnL = closing * (fill.Price - pos.avg)
	} else {
		legPnL = closing * (pos.avg - fill.Price)
	}
	pos.pnl += legPnL
	s.realized += legPnL
	// Leftover signed quantity once the closing portion is consumed.
	remainder := signed + sign(pos.qty)*closing

	if math.Abs(signed) >= math.Abs(pos.qty) {
		e.closeRoundTrip(s, fill, pos, key)
		if remainder != 0 {
			// Position flipped: the leftover opens a fresh round trip.
			pos.qty = remainder
			pos.avg = fill.Price
			pos.pnl = 0
			pos.since = fill.FilledAt
		}
		return
	}
	pos.qty += signed
}

func (e *Engine) closeRoundTrip(s *stratState, fill domain.Fill, pos *position, key string) {
	side := domain.OrderSideBuy
	if pos.qty < 0 {
		side = domain.OrderSideSell
	}
	trade := domain.ClosedTrade{
		StrategyID: fill.StrategyID,
		Platform:   fill.Platform,
		MarketID:   fill.MarketID,
		Side:       side,
		Quantity:   math.Abs(pos.qty),
		EntryPrice: pos.avg,
		ExitPrice:  fill.Price,
		PnL:        pos.pnl,
		ClosedAt:   fill.FilledAt,
	}
	e.trades = append(e.trades, trade)

	s.closed++
	if trade.PnL > 0 {
		s.winners++
		s.grossProfit += trade.PnL
	} else if trade.PnL < 0 {
		s.losers++
		s.grossLoss += -trade.PnL
	}

	// Welford update over the trade's return sample.
	sample := trade.PnL / e.cfg.InitialBalance
	s.n++
	delta := sample - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (sample - s.mean)

	pos.qty = 0
	pos.avg = 0
	pos.pnl = 0
	delete(s.positions, key)

	e.logger.Debug("round trip closed",
		slog.String("strategy", trade.StrategyID),
		slog.String("market_id", trade.MarketID),
		slog.Float64("pnl", trade.PnL))
}

func (e *Engine) unrealized(s *stratState) float64 {
	var total float64
	for key, pos := range s.positions {
		mid, ok := e.mids[key]
		if !ok || pos.qty == 0 {
			continue
		}
		if pos.qty > 0 {
			total += pos.qty * (mid - pos.avg)
		} else {
			total += -pos.qty * (pos.avg - mid)
		}
	}
	return total
}

func (e *Engine) updateDrawdown(s *stratState) {
	equity := s.cash + e.marketValue(s)
	if equity > s.peak {
		s.peak = equity
	}
	if s.peak > 0 {
		dd := (s.peak - equity) / s.peak
		if dd > s.maxDrawdown {
			s.maxDrawdown = dd
		}
	}
}

// marketValue is the mark-to-mid value of open positions (signed).
func (e *Engine) marketValue(s *stratState) float64 {
	var total float64
	for key, pos := range s.positions {
		if mid, ok := e.mids[key]; ok {
			total += pos.qty * mid
		} else {
			total += pos.qty * pos.avg
		}
	}
	return total
}

func (e *Engine) snapshot(strategyID string, s *stratState) domain.PerformanceSnapshot {
	snap := domain.PerformanceSnapshot{
		RunID:         e.runID,
		StrategyID:    strategyID,
		TotalTrades:   s.closed,
		WinningTrades: s.winners,
		LosingTrades:  s.losers,
		RealizedPnL:   s.realized,
		UnrealizedPnL: e.unrealized(s),
		GrossProfit:   s.grossProfit,
		GrossLoss:     s.grossLoss,
		MaxDrawdown:   s.maxDrawdown,
		Cash:          s.cash,
		Equity:        s.cash + e.marketValue(s),
		EventTime:     e.eventTime,
		TakenAt:       time.Now().UTC(),
	}
	snap.TotalPnL = snap.RealizedPnL + snap.UnrealizedPnL
	snap.TotalReturn = snap.TotalPnL / e.cfg.InitialBalance
	if s.closed > 0 {
		snap.WinRate = float64(s.winners) / float64(s.closed)
	}
	if s.grossLoss > 0 {
		pf := s.grossProfit / s.grossLoss
		snap.ProfitFactor = &pf
	}
	if s.n >= 2 {
		variance := s.m2 / float64(s.n-1)
		if stdev := math.Sqrt(variance); stdev > 0 {
			sharpe := s.mean / stdev
			if e.cfg.Annualization > 0 {
				sharpe *= e.cfg.Annualization
			}
			snap.SharpeRatio = &sharpe
		}
	}
	return snap
}

// Snapshot returns the named strategy's current snapshot.
func (e *Engine) Snapshot(strategyID string) domain.PerformanceSnapshot {
	return e.snapshot(strategyID, e.state(strategyID))
}

// Final returns every strategy's snapshot in first-seen order. Open
// positions stay open; their value is carried as unrealized P&L.
func (e *Engine) Final() []domain.PerformanceSnapshot {
	out := make([]domain.PerformanceSnapshot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.snapshot(id, e.strategies[id]))
	}
	return out
}

// ClosedTrades returns the run's closed round trips in close order.
func (e *Engine) ClosedTrades() []domain.ClosedTrade { return e.trades }

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
