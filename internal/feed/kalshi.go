package feed

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// KalshiFeed streams orderbook snapshots and trades for a set of market
// tickers. Kalshi quotes in cents; everything is normalized to probabilities
// before leaving this package.
type KalshiFeed struct {
	wsURL   string
	tickers []string
	keyID   string
	signKey *rsa.PrivateKey // nil connects without auth headers
	out     chan domain.MarketEvent
	logger  *slog.Logger

	cmdID int
}

// NewKalshiFeed creates a feed for the given market tickers.
func NewKalshiFeed(wsURL string, tickers []string, keyID string, signKey *rsa.PrivateKey, queueSize int, logger *slog.Logger) *KalshiFeed {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &KalshiFeed{
		wsURL:   wsURL,
		tickers: tickers,
		keyID:   keyID,
		signKey: signKey,
		out:     make(chan domain.MarketEvent, queueSize),
		logger:  logger.With(slog.String("component", "kalshi_feed")),
	}
}

// Events returns the feed's output channel. Closed when Run returns.
func (f *KalshiFeed) Events() <-chan domain.MarketEvent { return f.out }

// Run connects and re-connects until ctx is cancelled.
func (f *KalshiFeed) Run(ctx context.Context) error {
	defer close(f.out)
	if len(f.tickers) == 0 {
		f.logger.Info("no market tickers to subscribe, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("kalshi ws disconnected, reconnecting",
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

func (f *KalshiFeed) runConnection(ctx context.Context) error {
	header, err := f.authHeader()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, header)
	if err != nil {
		return fmt.Errorf("kalshi/ws: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	f.cmdID++
	sub := struct {
		ID     int    `json:"id"`
		Cmd    string `json:"cmd"`
		Params struct {
			Channels []string `json:"channels"`
			Tickers  []string `json:"market_tickers"`
		} `json:"params"`
	}{ID: f.cmdID, Cmd: "subscribe"}
	sub.Params.Channels = []string{"orderbook_snapshot", "trade"}
	sub.Params.Tickers = f.tickers

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("kalshi/ws: subscribe: %w", err)
	}
	f.logger.Info("kalshi ws subscribed", slog.Int("tickers", len(f.tickers)))

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
			return fmt.Errorf("kalshi/ws: read: %w", err)
		}
		f.handleMessage(ctx, raw)
	}
}

// authHeader signs the handshake the way the REST API expects: RSA-PSS over
// timestamp + method + path.
func (f *KalshiFeed) authHeader() (http.Header, error) {
	if f.signKey == nil {
		return nil, nil
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	msg := ts + http.MethodGet + "/trade-api/ws/v2"
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(rand.Reader, f.signKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("kalshi/ws: sign handshake: %w", err)
	}

	header := http.Header{}
	header.Set("KALSHI-ACCESS-KEY", f.keyID)
	header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(sig))
	return header, nil
}

type kalshiBookMsg struct {
	MarketTicker string   `json:"market_ticker"`
	Yes          [][2]int `json:"yes"`
	No           [][2]int `json:"no"`
	TS           int64    `json:"ts"`
}

type kalshiTradeMsg struct {
	MarketTicker string `json:"market_ticker"`
	YesPrice     int    `json:"yes_price"`
	Count        int    `json:"count"`
	TakerSide    string `json:"taker_side"`
	TS           int64  `json:"ts"`
}

func (f *KalshiFeed) handleMessage(ctx context.Context, raw []byte) {
	var envelope struct {
		Type string          `json:"type"`
		Msg  json.RawMessage `json:"msg"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.Type {
	case "orderbook_snapshot":
		var msg kalshiBookMsg
		if err := json.Unmarshal(envelope.Msg, &msg); err != nil {
			return
		}
		// YES bids are bids on the probability; NO bids at c cents imply
		// offers on YES at 1 - c/100.
		bids := make([]domain.BookLevel, 0, len(msg.Yes))
		for _, l := range msg.Yes {
			bids = append(bids, domain.BookLevel{Price: float64(l[0]) / 100, Size: float64(l[1])})
		}
		asks := make([]domain.BookLevel, 0, len(msg.No))
		for _, l := range msg.No {
			asks = append(asks, domain.BookLevel{Price: 1 - float64(l[0])/100, Size: float64(l[1])})
		}
		event := domain.MarketEvent{
			Platform:  domain.PlatformKalshi,
			MarketID:  msg.MarketTicker,
			Timestamp: kalshiTimestamp(msg.TS),
			Kind:      domain.EventKindBookUpdate,
			Book: &domain.BookUpdate{
				Bids: sortLevels(bids, true),
				Asks: sortLevels(asks, false),
			},
		}
		emit(ctx, f.out, event)

	case "trade":
		var msg kalshiTradeMsg
		if err := json.Unmarshal(envelope.Msg, &msg); err != nil {
			return
		}
		if msg.YesPrice <= 0 || msg.Count <= 0 {
			return
		}
		side := domain.OrderSideBuy
		if msg.TakerSide == "no" {
			side = domain.OrderSideSell
		}
		event := domain.MarketEvent{
			Platform:  domain.PlatformKalshi,
			MarketID:  msg.MarketTicker,
			Timestamp: kalshiTimestamp(msg.TS),
			Kind:      domain.EventKindTrade,
			Trade: &domain.TradeEvent{
				Price: float64(msg.YesPrice) / 100,
				Size:  float64(msg.Count),
				Side:  side,
			},
		}
		emit(ctx, f.out, event)
	}
}

func kalshiTimestamp(ts int64) time.Time {
	if ts <= 0 {
		return time.Now().UTC()
	}
	// Kalshi sends seconds on some channels and millis on others.
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
