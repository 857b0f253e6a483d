// Package paper is a deterministic in-memory broker for tests and dry runs:
// scripted candle series, immediate fills against the latest close, and a
// holdings book kept the way a brokerage would report it.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/splitbot/broker"
	"github.com/rustyeddy/splitbot/market"
	"github.com/rustyeddy/splitbot/pkg/id"
)

type holding struct {
	amount   int64
	avgPrice float64
}

// Fill is one executed paper order, recorded for test assertions.
type Fill struct {
	OrderID      string
	InstrumentID string
	Amount       int64 // negative for sells
	Price        float64
}

type Engine struct {
	mu       sync.Mutex
	cash     float64
	series   map[string]market.Series
	holdings map[string]*holding
	fills    []Fill

	// RejectOrders forces every submission to fail with broker.ErrRejected,
	// exercising the skip-and-retry path.
	RejectOrders bool
}

var _ broker.Broker = (*Engine)(nil)

func NewEngine(cash float64) *Engine {
	return &Engine{
		cash:     cash,
		series:   map[string]market.Series{},
		holdings: map[string]*holding{},
	}
}

// SetSeries scripts the candle series served for an instrument or index id.
func (e *Engine) SetSeries(instrumentID string, s market.Series) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.series[instrumentID] = s
}

// SetHolding seeds a brokerage-side position, e.g. one bought outside the
// bot that reconciliation or first-entry adoption must pick up.
func (e *Engine) SetHolding(instrumentID string, amount int64, avgPrice float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount == 0 {
		delete(e.holdings, instrumentID)
		return
	}
	e.holdings[instrumentID] = &holding{amount: amount, avgPrice: avgPrice}
}

// Fills returns every executed order so far.
func (e *Engine) Fills() []Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Fill, len(e.fills))
	copy(out, e.fills)
	return out
}

func (e *Engine) GetIndicatorSeries(ctx context.Context, instrumentID string, lookback int) (market.Series, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.series[instrumentID]
	if !ok {
		return nil, fmt.Errorf("paper: no series for %q", instrumentID)
	}
	return s.Last(lookback), nil
}

func (e *Engine) GetBroadMarketSeries(ctx context.Context, indexID string, periods int) (market.Series, error) {
	return e.GetIndicatorSeries(ctx, indexID, periods)
}

func (e *Engine) GetEquity(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	equity := e.cash
	for instrumentID, h := range e.holdings {
		equity += float64(h.amount) * e.lastCloseLocked(instrumentID)
	}
	return equity, nil
}

func (e *Engine) GetHolding(ctx context.Context, instrumentID string) (market.Holding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.holdings[instrumentID]
	if !ok {
		return market.Holding{}, nil
	}
	last := e.lastCloseLocked(instrumentID)
	return market.Holding{
		Amount:        h.amount,
		AvgPrice:      h.avgPrice,
		UnrealizedPnL: (last - h.avgPrice) * float64(h.amount),
	}, nil
}

// SubmitBuy fills at the latest close when the limit covers it, rejecting
// otherwise — a limit resting below market does not fill within a cycle.
func (e *Engine) SubmitBuy(ctx context.Context, instrumentID string, amount int64, limitPrice float64) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.RejectOrders {
		return broker.OrderResult{}, broker.ErrRejected
	}
	if amount <= 0 {
		return broker.OrderResult{}, fmt.Errorf("%w: non-positive amount %d", broker.ErrRejected, amount)
	}
	last := e.lastCloseLocked(instrumentID)
	if last <= 0 {
		return broker.OrderResult{}, fmt.Errorf("paper: no price for %q", instrumentID)
	}
	if limitPrice < last {
		return broker.OrderResult{}, fmt.Errorf("%w: limit %.2f below market %.2f", broker.ErrRejected, limitPrice, last)
	}
	cost := float64(amount) * last
	if cost > e.cash {
		return broker.OrderResult{}, fmt.Errorf("%w: insufficient cash", broker.ErrRejected)
	}

	e.cash -= cost
	h, ok := e.holdings[instrumentID]
	if !ok {
		h = &holding{}
		e.holdings[instrumentID] = h
	}
	total := float64(h.amount)*h.avgPrice + cost
	h.amount += amount
	h.avgPrice = total / float64(h.amount)

	fill := Fill{OrderID: id.New(), InstrumentID: instrumentID, Amount: amount, Price: last}
	e.fills = append(e.fills, fill)
	return broker.OrderResult{OrderID: fill.OrderID, Amount: amount, Price: last}, nil
}

// SubmitSell fills at the latest close when the limit allows it.
func (e *Engine) SubmitSell(ctx context.Context, instrumentID string, amount int64, limitPrice float64) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.RejectOrders {
		return broker.OrderResult{}, broker.ErrRejected
	}
	h, ok := e.holdings[instrumentID]
	if !ok || h.amount < amount || amount <= 0 {
		return broker.OrderResult{}, fmt.Errorf("%w: insufficient holding", broker.ErrRejected)
	}
	last := e.lastCloseLocked(instrumentID)
	if last <= 0 {
		return broker.OrderResult{}, fmt.Errorf("paper: no price for %q", instrumentID)
	}
	if limitPrice > last {
		return broker.OrderResult{}, fmt.Errorf("%w: limit %.2f above market %.2f", broker.ErrRejected, limitPrice, last)
	}

	e.cash += float64(amount) * last
	h.amount -= amount
	if h.amount == 0 {
		delete(e.holdings, instrumentID)
	}

	fill := Fill{OrderID: id.New(), InstrumentID: instrumentID, Amount: -amount, Price: last}
	e.fills = append(e.fills, fill)
	return broker.OrderResult{OrderID: fill.OrderID, Amount: amount, Price: last}, nil
}

func (e *Engine) lastCloseLocked(instrumentID string) float64 {
	s, ok := e.series[instrumentID]
	if !ok || len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Close
}
