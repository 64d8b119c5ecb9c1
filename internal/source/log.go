package source

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// Wire types for the collected event log. The shape is shared with the
// recorder so collect-then-replay round trips are identity.

type logFile struct {
	CollectedAt time.Time  `json:"collected_at"`
	TotalEvents int        `json:"total_events"`
	Events      []logEvent `json:"events"`
}

type logEvent struct {
	Type      string          `json:"type"`
	MarketID  string          `json:"market_id"`
	Platform  string          `json:"platform"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type bookData struct {
	Bids [][2]float64 `json:"bids"`
	Asks [][2]float64 `json:"asks"`
}

type tradeData struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Side  string  `json:"side"`
}

// decodeEvent converts one wire event into a MarketEvent. Seq is assigned by
// the caller in arrival order.
func decodeEvent(raw logEvent, seq uint64) (domain.MarketEvent, error) {
	if raw.MarketID == "" {
		return domain.MarketEvent{}, fmt.Errorf("missing market_id: %w", domain.ErrMalformedEvent)
	}
	if raw.Timestamp.IsZero() {
		return domain.MarketEvent{}, fmt.Errorf("missing timestamp: %w", domain.ErrMalformedEvent)
	}

	event := domain.MarketEvent{
		Platform:  domain.Platform(raw.Platform),
		MarketID:  raw.MarketID,
		Timestamp: raw.Timestamp,
		Seq:       seq,
	}
	switch raw.Platform {
	case string(domain.PlatformPolymarket), string(domain.PlatformKalshi):
	default:
		return domain.MarketEvent{}, fmt.Errorf("unknown platform %q: %w", raw.Platform, domain.ErrMalformedEvent)
	}

	switch raw.Type {
	case string(domain.EventKindBookUpdate):
		var data bookData
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return domain.MarketEvent{}, fmt.Errorf("decode book data: %w", domain.ErrMalformedEvent)
		}
		event.Kind = domain.EventKindBookUpdate
		event.Book = &domain.BookUpdate{
			Bids: toLevels(data.Bids),
			Asks: toLevels(data.Asks),
		}
	case string(domain.EventKindTrade):
		var data tradeData
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return domain.MarketEvent{}, fmt.Errorf("decode trade data: %w", domain.ErrMalformedEvent)
		}
		if data.Price <= 0 || data.Size <= 0 {
			return domain.MarketEvent{}, fmt.Errorf("non-positive trade price/size: %w", domain.ErrMalformedEvent)
		}
		event.Kind = domain.EventKindTrade
		event.Trade = &domain.TradeEvent{
			Price: data.Price,
			Size:  data.Size,
			Side:  domain.OrderSide(data.Side),
		}
	default:
		return domain.MarketEvent{}, fmt.Errorf("unknown event type %q: %w", raw.Type, domain.ErrMalformedEvent)
	}
	return event, nil
}

// encodeEvent converts a MarketEvent back to its wire form.
func encodeEvent(event domain.MarketEvent) (logEvent, error) {
	var (
		data any
		kind string
	)
	switch event.Kind {
	case domain.EventKindBookUpdate:
		kind = string(domain.EventKindBookUpdate)
		data = bookData{Bids: fromLevels(event.Book.Bids), Asks: fromLevels(event.Book.Asks)}
	case domain.EventKindTrade:
		kind = string(domain.EventKindTrade)
		data = tradeData{Price: event.Trade.Price, Size: event.Trade.Size, Side: string(event.Trade.Side)}
	default:
		return logEvent{}, fmt.Errorf("encode: unknown event kind %q", event.Kind)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return logEvent{}, fmt.Errorf("encode event data: %w", err)
	}
	return logEvent{
		Type:      kind,
		MarketID:  event.MarketID,
		Platform:  string(event.Platform),
		Timestamp: event.Timestamp,
		Data:      payload,
	}, nil
}

func toLevels(pairs [][2]float64) []domain.BookLevel {
	if len(pairs) == 0 {
		return nil
	}
	levels := make([]domain.BookLevel, len(pairs))
	for i, p := range pairs {
		levels[i] = domain.BookLevel{Price: p[0], Size: p[1]}
	}
	return levels
}

func fromLevels(levels []domain.BookLevel) [][2]float64 {
	pairs := make([][2]float64, len(levels))
	for i, l := range levels {
		pairs[i] = [2]float64{l.Price, l.Size}
	}
	return pairs
}

func readLogFile(r io.Reader) (*logFile, error) {
	var file logFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode event log: %w", err)
	}
	return &file, nil
}
