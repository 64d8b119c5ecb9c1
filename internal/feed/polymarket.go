package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// PolymarketFeed streams the CLOB market channel for a set of asset IDs and
// normalizes book snapshots and trade prints.
type PolymarketFeed struct {
	wsURL    string
	assetIDs []string
	out      chan domain.MarketEvent
	logger   *slog.Logger
}

// NewPolymarketFeed creates a feed for the given asset IDs. queueSize <= 0
// uses DefaultQueueSize.
func NewPolymarketFeed(wsURL string, assetIDs []string, queueSize int, logger *slog.Logger) *PolymarketFeed {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &PolymarketFeed{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		out:      make(chan domain.MarketEvent, queueSize),
		logger:   logger.With(slog.String("component", "polymarket_feed")),
	}
}

// Events returns the feed's output channel. Closed when Run returns.
func (f *PolymarketFeed) Events() <-chan domain.MarketEvent { return f.out }

// Run connects and re-connects until ctx is cancelled.
func (f *PolymarketFeed) Run(ctx context.Context) error {
	defer close(f.out)
	if len(f.assetIDs) == 0 {
		f.logger.Info("no asset IDs to subscribe, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("polymarket ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = backoff(delay)
	}
}

func (f *PolymarketFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := struct {
		Type   string   `json:"type"`
		Assets []string `json:"assets_ids"`
	}{Type: "market", Assets: f.assetIDs}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	f.logger.Info("polymarket ws subscribed", slog.Int("assets", len(f.assetIDs)))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("polymarket/ws: read: %w", err)
		}
		f.handleMessage(ctx, raw)
	}
}

// Polymarket sends prices and sizes as decimal strings and timestamps as
// millisecond strings.
type polyBookMessage struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Timestamp string      `json:"timestamp"`
	Bids      []polyLevel `json:"bids"`
	Asks      []polyLevel `json:"asks"`
}

type polyLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type polyTradeMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Timestamp string `json:"timestamp"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
}

func (f *PolymarketFeed) handleMessage(ctx context.Context, raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // silently drop unparseable frames
	}

	switch envelope.EventType {
	case "book":
		var msg polyBookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		event := domain.MarketEvent{
			Platform:  domain.PlatformPolymarket,
			MarketID:  msg.AssetID,
			Timestamp: polyTimestamp(msg.Timestamp),
			Kind:      domain.EventKindBookUpdate,
			Book: &domain.BookUpdate{
				Bids: sortLevels(polyLevels(msg.Bids), true),
				Asks: sortLevels(polyLevels(msg.Asks), false),
			},
		}
		emit(ctx, f.out, event)

	case "last_trade_price":
		var msg polyTradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		price, _ := strconv.ParseFloat(msg.Price, 64)
		size, _ := strconv.ParseFloat(msg.Size, 64)
		if price <= 0 || size <= 0 {
			return
		}
		side := domain.OrderSideBuy
		if msg.Side == "SELL" || msg.Side == "sell" {
			side = domain.OrderSideSell
		}
		event := domain.MarketEvent{
			Platform:  domain.PlatformPolymarket,
			MarketID:  msg.AssetID,
			Timestamp: polyTimestamp(msg.Timestamp),
			Kind:      domain.EventKindTrade,
			Trade:     &domain.TradeEvent{Price: price, Size: size, Side: side},
		}
		emit(ctx, f.out, event)
	}
}

func polyLevels(levels []polyLevel) []domain.BookLevel {
	if len(levels) == 0 {
		return nil
	}
	out := make([]domain.BookLevel, 0, len(levels))
	for _, l := range levels {
		price, err1 := strconv.ParseFloat(l.Price, 64)
		size, err2 := strconv.ParseFloat(l.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, domain.BookLevel{Price: price, Size: size})
	}
	return out
}

func polyTimestamp(ms string) time.Time {
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil || n <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(n).UTC()
}
