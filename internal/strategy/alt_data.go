package strategy

import (
	"context"
	"math"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// AltDataConfig tunes the mid-price momentum strategy.
type AltDataConfig struct {
	// Window is how many mid samples the drift is measured over.
	Window int
	// DriftThreshold is the absolute mid move that triggers a signal.
	DriftThreshold float64
	// ConfidenceThreshold is the minimum conviction worth acting on.
	ConfidenceThreshold float64
	// OrderSize is the size of each momentum order.
	OrderSize float64
}

// AltData trades mid-price momentum: it keeps a short window of mids per
// market and joins the move once the drift across the window clears the
// threshold. Stands in for signal feeds that arrive out of band.
type AltData struct {
	cfg  AltDataConfig
	mids map[string][]float64
}

// NewAltData returns the strategy with zero-value fields defaulted.
func NewAltData(cfg AltDataConfig) *AltData {
	if cfg.Window <= 1 {
		cfg.Window = 10
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = 0.03
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.OrderSize <= 0 {
		cfg.OrderSize = 10
	}
	return &AltData{cfg: cfg, mids: make(map[string][]float64)}
}

func (s *AltData) Name() string                   { return "alt_data" }
func (s *AltData) Init(ctx context.Context) error { return nil }
func (s *AltData) Close() error                   { return nil }

func (s *AltData) Handle(ctx context.Context, event domain.MarketEvent, book domain.OrderBookState) ([]domain.Signal, error) {
	if event.Kind != domain.EventKindBookUpdate {
		return nil, nil
	}
	mid := book.MidPrice()
	if mid <= 0 {
		return nil, nil
	}

	key := event.StreamKey()
	window := append(s.mids[key], mid)
	if len(window) > s.cfg.Window {
		window = window[len(window)-s.cfg.Window:]
	}
	s.mids[key] = window
	if len(window) < s.cfg.Window {
		return nil, nil
	}

	drift := window[len(window)-1] - window[0]
	// Larger moves carry more conviction: drift at the threshold is worth
	// 0.5, twice the threshold (or more) is full conviction.
	confidence := math.Min(math.Abs(drift)/(2*s.cfg.DriftThreshold), 1.0)
	if confidence < s.cfg.ConfidenceThreshold {
		return nil, nil
	}

	if drift >= s.cfg.DriftThreshold && book.HasAsk() {
		s.mids[key] = nil // re-arm after acting
		return []domain.Signal{{
			Platform:   event.Platform,
			MarketID:   event.MarketID,
			Type:       domain.SignalBuy,
			Price:      book.BestAsk,
			Size:       s.cfg.OrderSize,
			Confidence: confidence,
			Reason:     "upward mid drift",
			CreatedAt:  event.Timestamp,
		}}, nil
	}
	if drift <= -s.cfg.DriftThreshold && book.HasBid() {
		s.mids[key] = nil
		return []domain.Signal{{
			Platform:   event.Platform,
			MarketID:   event.MarketID,
			Type:       domain.SignalSell,
			Price:      book.BestBid,
			Size:       s.cfg.OrderSize,
			Confidence: confidence,
			Reason:     "downward mid drift",
			CreatedAt:  event.Timestamp,
		}}, nil
	}
	return nil, nil
}
