package strategy

import (
	"context"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// CopyTradingConfig tunes the copy-trading strategy.
type CopyTradingConfig struct {
	// MinTradeSize is the print size that qualifies as worth copying.
	MinTradeSize float64
	// CopyRatio scales the copied size relative to the observed print.
	CopyRatio float64
	// MaxOrderSize caps any single copied order.
	MaxOrderSize float64
}

// CopyTrading follows large prints: when a trade at or above MinTradeSize
// hits the tape, it joins the same side at the traded price.
type CopyTrading struct {
	cfg CopyTradingConfig
}

// NewCopyTrading returns the strategy with zero-value fields defaulted.
func NewCopyTrading(cfg CopyTradingConfig) *CopyTrading {
	if cfg.MinTradeSize <= 0 {
		cfg.MinTradeSize = 50
	}
	if cfg.CopyRatio <= 0 {
		cfg.CopyRatio = 0.1
	}
	if cfg.MaxOrderSize <= 0 {
		cfg.MaxOrderSize = 25
	}
	return &CopyTrading{cfg: cfg}
}

func (s *CopyTrading) Name() string                   { return "copy_trading" }
func (s *CopyTrading) Init(ctx context.Context) error { return nil }
func (s *CopyTrading) Close() error                   { return nil }

func (s *CopyTrading) Handle(ctx context.Context, event domain.MarketEvent, book domain.OrderBookState) ([]domain.Signal, error) {
	if event.Kind != domain.EventKindTrade {
		return nil, nil
	}
	trade := event.Trade
	if trade.Size < s.cfg.MinTradeSize {
		return nil, nil
	}
	if trade.Price <= 0 || trade.Price >= 1 {
		return nil, nil
	}

	size := trade.Size * s.cfg.CopyRatio
	if size > s.cfg.MaxOrderSize {
		size = s.cfg.MaxOrderSize
	}

	// Conviction scales with print size: the qualifying minimum is worth 0.5,
	// twice the minimum (or more) is full conviction.
	confidence := trade.Size / (2 * s.cfg.MinTradeSize)
	if confidence > 1 {
		confidence = 1
	}

	sigType := domain.SignalBuy
	if trade.Side == domain.OrderSideSell {
		sigType = domain.SignalSell
	}
	return []domain.Signal{{
		Platform:   event.Platform,
		MarketID:   event.MarketID,
		Type:       sigType,
		Price:      trade.Price,
		Size:       size,
		Confidence: confidence,
		Reason:     "large print copied",
		CreatedAt:  event.Timestamp,
	}}, nil
}
