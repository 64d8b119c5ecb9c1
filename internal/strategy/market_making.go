package strategy

import (
	"context"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// MarketMakingConfig tunes the spread-capture strategy.
type MarketMakingConfig struct {
	// MinSpread is the smallest spread worth quoting into.
	MinSpread float64
	// QuoteSize is the size of each quoted side.
	QuoteSize float64
	// MaxInventory bounds absolute net position per market.
	MaxInventory float64
	// Improvement is how far inside the touch each quote sits.
	Improvement float64
}

// quoteConfidence is the fixed conviction attached to passive quotes: the
// strategy has no directional view, it is paid for providing the spread.
const quoteConfidence = 0.8

// MarketMaking quotes both sides inside a wide spread and leans on observed
// fills to stop quoting the side that would grow inventory past its cap.
type MarketMaking struct {
	cfg       MarketMakingConfig
	inventory map[string]float64 // net position per stream, signed
}

// NewMarketMaking returns the strategy with zero-value fields defaulted.
func NewMarketMaking(cfg MarketMakingConfig) *MarketMaking {
	if cfg.MinSpread <= 0 {
		cfg.MinSpread = 0.04
	}
	if cfg.QuoteSize <= 0 {
		cfg.QuoteSize = 10
	}
	if cfg.MaxInventory <= 0 {
		cfg.MaxInventory = 100
	}
	if cfg.Improvement <= 0 {
		cfg.Improvement = 0.01
	}
	return &MarketMaking{cfg: cfg, inventory: make(map[string]float64)}
}

func (s *MarketMaking) Name() string                   { return "market_making" }
func (s *MarketMaking) Init(ctx context.Context) error { return nil }
func (s *MarketMaking) Close() error                   { return nil }

func (s *MarketMaking) Handle(ctx context.Context, event domain.MarketEvent, book domain.OrderBookState) ([]domain.Signal, error) {
	if event.Kind != domain.EventKindBookUpdate {
		return nil, nil
	}
	if !book.HasBid() || !book.HasAsk() || book.Crossed() {
		return nil, nil
	}
	if book.Spread() < s.cfg.MinSpread {
		return nil, nil
	}

	bidPx := book.BestBid + s.cfg.Improvement
	askPx := book.BestAsk - s.cfg.Improvement
	if bidPx >= askPx || bidPx <= 0 || askPx >= 1 {
		return nil, nil
	}

	inv := s.inventory[event.StreamKey()]
	var signals []domain.Signal
	if inv+s.cfg.QuoteSize <= s.cfg.MaxInventory {
		signals = append(signals, domain.Signal{
			Platform:   event.Platform,
			MarketID:   event.MarketID,
			Type:       domain.SignalBuy,
			Price:      bidPx,
			Size:       s.cfg.QuoteSize,
			Confidence: quoteConfidence,
			Reason:     "quoting inside spread",
			CreatedAt:  event.Timestamp,
		})
	}
	if inv-s.cfg.QuoteSize >= -s.cfg.MaxInventory {
		signals = append(signals, domain.Signal{
			Platform:   event.Platform,
			MarketID:   event.MarketID,
			Type:       domain.SignalSell,
			Price:      askPx,
			Size:       s.cfg.QuoteSize,
			Confidence: quoteConfidence,
			Reason:     "quoting inside spread",
			CreatedAt:  event.Timestamp,
		})
	}
	return signals, nil
}

// ObserveFill tracks net inventory per market from execution feedback.
func (s *MarketMaking) ObserveFill(fill domain.Fill) {
	key := string(fill.Platform) + ":" + fill.MarketID
	if fill.Side == domain.OrderSideBuy {
		s.inventory[key] += fill.Size
	} else {
		s.inventory[key] -= fill.Size
	}
}
