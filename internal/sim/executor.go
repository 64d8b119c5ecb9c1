package sim

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// Executor models order placement and fills. Order IDs are sequential within
// a run so identical event logs produce identical fill records byte for byte.
type Executor struct {
	ledger *Ledger
	logger *slog.Logger

	nextOrderID uint64
	orders      map[string]*domain.SimulatedOrder
	// resting holds open order IDs per stream key, in placement order.
	resting map[string][]string
	fills   []domain.Fill
}

// NewExecutor returns an executor writing settlements to ledger.
func NewExecutor(ledger *Ledger, logger *slog.Logger) *Executor {
	return &Executor{
		ledger:  ledger,
		logger:  logger.With(slog.String("component", "executor")),
		orders:  make(map[string]*domain.SimulatedOrder),
		resting: make(map[string][]string),
	}
}

// Submit validates a signal, places the simulated order, and fills whatever
// crosses the current book immediately at the resting side's price. The
// unfilled remainder rests until later trade events reach it. Validation
// failures return domain.ErrInvalidSignal wrapped with the reason.
func (e *Executor) Submit(signal domain.Signal, book domain.OrderBookState) ([]domain.Fill, error) {
	if signal.Size <= 0 {
		return nil, fmt.Errorf("size %v must be positive: %w", signal.Size, domain.ErrInvalidSignal)
	}
	if signal.Price <= 0 || signal.Price >= 1 {
		return nil, fmt.Errorf("price %v outside (0, 1): %w", signal.Price, domain.ErrInvalidSignal)
	}
	if signal.Confidence < 0 || signal.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v outside [0, 1]: %w", signal.Confidence, domain.ErrInvalidSignal)
	}
	switch signal.Platform {
	case domain.PlatformPolymarket, domain.PlatformKalshi:
	default:
		return nil, fmt.Errorf("unknown platform %q: %w", signal.Platform, domain.ErrInvalidSignal)
	}

	e.nextOrderID++
	order := &domain.SimulatedOrder{
		ID:         fmt.Sprintf("ord-%06d", e.nextOrderID),
		StrategyID: signal.StrategyID,
		Platform:   signal.Platform,
		MarketID:   signal.MarketID,
		Side:       signal.Type.Side(),
		Price:      signal.Price,
		Size:       signal.Size,
		Remaining:  signal.Size,
		Status:     domain.OrderStatusOpen,
		CreatedAt:  signal.CreatedAt,
	}
	e.orders[order.ID] = order

	var fills []domain.Fill
	if fill, ok := e.crossFill(order, book); ok {
		fills = append(fills, fill)
	}

	if order.Remaining > 0 {
		key := string(order.Platform) + ":" + order.MarketID
		e.resting[key] = append(e.resting[key], order.ID)
	}
	return fills, nil
}

// crossFill fills an incoming order against the opposing top of book. Fills
// execute at the resting price: a buy above the ask pays the ask, never its
// own limit.
func (e *Executor) crossFill(order *domain.SimulatedOrder, book domain.OrderBookState) (domain.Fill, bool) {
	var price, available float64
	switch order.Side {
	case domain.OrderSideBuy:
		if !book.HasAsk() || order.Price < book.BestAsk {
			return domain.Fill{}, false
		}
		price, available = book.BestAsk, book.AskSize
	case domain.OrderSideSell:
		if !book.HasBid() || order.Price > book.BestBid {
			return domain.Fill{}, false
		}
		price, available = book.BestBid, book.BidSize
	}
	if available <= 0 {
		return domain.Fill{}, false
	}

	size := order.Remaining
	if size > available {
		size = available
	}
	return e.fill(order, price, size, order.CreatedAt), true
}

// OnTrade fills resting orders from an observed trade. A buy rests until a
// trade prints at or below its price; a sell until one prints at or above.
// The trade's size is allocated across eligible orders best price first,
// placement order within equal prices.
func (e *Executor) OnTrade(event domain.MarketEvent) []domain.Fill {
	key := event.StreamKey()
	ids := e.resting[key]
	if len(ids) == 0 {
		return nil
	}
	trade := event.Trade

	eligible := make([]*domain.SimulatedOrder, 0, len(ids))
	for _, id := range ids {
		order := e.orders[id]
		if order.Status != domain.OrderStatusOpen && order.Status != domain.OrderStatusPartiallyFilled {
			continue
		}
		if order.Side == domain.OrderSideBuy && trade.Price <= order.Price {
			eligible = append(eligible, order)
		}
		if order.Side == domain.OrderSideSell && trade.Price >= order.Price {
			eligible = append(eligible, order)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Price != b.Price {
			if a.Side == domain.OrderSideBuy {
				return a.Price > b.Price
			}
			return a.Price < b.Price
		}
		return a.ID < b.ID // placement order: IDs are sequential
	})

	var fills []domain.Fill
	left := trade.Size
	for _, order := range eligible {
		if left <= 0 {
			break
		}
		size := order.Remaining
		if size > left {
			size = left
		}
		fills = append(fills, e.fill(order, trade.Price, size, event.Timestamp))
		left -= size
	}

	e.compact(key)
	return fills
}

// fill records one execution, settles it, and advances the order lifecycle.
func (e *Executor) fill(order *domain.SimulatedOrder, price, size float64, at time.Time) domain.Fill {
	order.Remaining -= size
	if order.Remaining <= 0 {
		order.Remaining = 0
		order.Status = domain.OrderStatusFilled
	} else {
		order.Status = domain.OrderStatusPartiallyFilled
	}

	fill := domain.Fill{
		OrderID:    order.ID,
		StrategyID: order.StrategyID,
		Platform:   order.Platform,
		MarketID:   order.MarketID,
		Side:       order.Side,
		Price:      price,
		Size:       size,
		FilledAt:   at,
	}
	e.ledger.ApplyFill(fill)
	e.fills = append(e.fills, fill)

	e.logger.Debug("fill",
		slog.String("order_id", order.ID),
		slog.String("strategy", order.StrategyID),
		slog.String("side", string(order.Side)),
		slog.Float64("price", price),
		slog.Float64("size", size))
	return fill
}

// compact drops closed orders from a stream's resting queue.
func (e *Executor) compact(key string) {
	ids := e.resting[key]
	open := ids[:0]
	for _, id := range ids {
		order := e.orders[id]
		if order.Status == domain.OrderStatusOpen || order.Status == domain.OrderStatusPartiallyFilled {
			open = append(open, id)
		}
	}
	if len(open) == 0 {
		delete(e.resting, key)
		return
	}
	e.resting[key] = open
}

// CancelOpen cancels every order still resting. Called at finalization so
// the run record reflects a closed book of orders.
func (e *Executor) CancelOpen() int {
	cancelled := 0
	for key, ids := range e.resting {
		for _, id := range ids {
			order := e.orders[id]
			if order.Status == domain.OrderStatusOpen || order.Status == domain.OrderStatusPartiallyFilled {
				order.Status = domain.OrderStatusCancelled
				cancelled++
			}
		}
		delete(e.resting, key)
	}
	return cancelled
}

// Order returns an order by ID.
func (e *Executor) Order(id string) (domain.SimulatedOrder, bool) {
	order, ok := e.orders[id]
	if !ok {
		return domain.SimulatedOrder{}, false
	}
	return *order, true
}

// OpenOrders returns the resting orders for a stream, placement order.
func (e *Executor) OpenOrders(platform domain.Platform, marketID string) []domain.SimulatedOrder {
	ids := e.resting[string(platform)+":"+marketID]
	out := make([]domain.SimulatedOrder, 0, len(ids))
	for _, id := range ids {
		out = append(out, *e.orders[id])
	}
	return out
}

// Fills returns the run's full append-only fill history.
func (e *Executor) Fills() []domain.Fill { return e.fills }
