// Package sim is the execution simulator: it turns strategy signals into
// simulated orders, models fills against the observed market, and keeps the
// per-strategy cash and position ledger. All state here is owned by the
// single run loop.
package sim

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// Ledger tracks cash and net positions per strategy in exact decimal
// arithmetic. Shorts are allowed; there is no margin model, so cash may go
// negative and positions may flip sign freely.
type Ledger struct {
	initial decimal.Decimal
	feeRate decimal.Decimal

	cash      map[string]decimal.Decimal            // strategyID -> cash
	positions map[string]map[string]decimal.Decimal // strategyID -> streamKey -> net position
}

// NewLedger returns a ledger crediting every strategy initialBalance on
// first touch. feeRate is the per-fill proportional fee (0 disables fees).
func NewLedger(initialBalance, feeRate float64) *Ledger {
	return &Ledger{
		initial:   decimal.NewFromFloat(initialBalance),
		feeRate:   decimal.NewFromFloat(feeRate),
		cash:      make(map[string]decimal.Decimal),
		positions: make(map[string]map[string]decimal.Decimal),
	}
}

func (l *Ledger) touch(strategyID string) {
	if _, ok := l.cash[strategyID]; !ok {
		l.cash[strategyID] = l.initial
		l.positions[strategyID] = make(map[string]decimal.Decimal)
	}
}

// ApplyFill settles one fill: cash moves by price*size plus the fee, the
// stream's net position moves by the signed size.
func (l *Ledger) ApplyFill(fill domain.Fill) {
	l.touch(fill.StrategyID)

	price := decimal.NewFromFloat(fill.Price)
	size := decimal.NewFromFloat(fill.Size)
	notional := price.Mul(size)
	fee := notional.Mul(l.feeRate)

	key := string(fill.Platform) + ":" + fill.MarketID
	pos := l.positions[fill.StrategyID][key]
	if fill.Side == domain.OrderSideBuy {
		l.cash[fill.StrategyID] = l.cash[fill.StrategyID].Sub(notional).Sub(fee)
		l.positions[fill.StrategyID][key] = pos.Add(size)
	} else {
		l.cash[fill.StrategyID] = l.cash[fill.StrategyID].Add(notional).Sub(fee)
		l.positions[fill.StrategyID][key] = pos.Sub(size)
	}
}

// Cash returns a strategy's cash balance.
func (l *Ledger) Cash(strategyID string) float64 {
	l.touch(strategyID)
	f, _ := l.cash[strategyID].Float64()
	return f
}

// Position returns a strategy's net position in a stream.
func (l *Ledger) Position(strategyID string, platform domain.Platform, marketID string) float64 {
	l.touch(strategyID)
	f, _ := l.positions[strategyID][string(platform)+":"+marketID].Float64()
	return f
}

// Positions returns a copy of a strategy's non-zero positions by stream key.
func (l *Ledger) Positions(strategyID string) map[string]float64 {
	l.touch(strategyID)
	out := make(map[string]float64)
	for key, pos := range l.positions[strategyID] {
		if !pos.IsZero() {
			out[key], _ = pos.Float64()
		}
	}
	return out
}

// Strategies returns every strategy the ledger has seen.
func (l *Ledger) Strategies() []string {
	out := make([]string, 0, len(l.cash))
	for id := range l.cash {
		out = append(out, id)
	}
	return out
}
