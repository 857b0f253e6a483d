// Package broker defines the collaborator contracts the decision engine
// consumes: market data, account queries and order execution. The core
// performs no internal retries; a failed call simply skips that tier's
// transition until the next cycle.
package broker

import (
	"context"
	"errors"

	"github.com/rustyeddy/splitbot/market"
)

// ErrRejected marks an order the brokerage refused. The engine logs it and
// retries the transition next cycle without mutating any ledger state.
var ErrRejected = errors.New("broker: order rejected")

// MarketData serves candle series for instruments and the broad-market
// index.
type MarketData interface {
	// GetIndicatorSeries returns at least lookback candles for an
	// instrument, oldest first, or an error when unavailable.
	GetIndicatorSeries(ctx context.Context, instrumentID string, lookback int) (market.Series, error)

	// GetBroadMarketSeries returns the broad-market index series used by the
	// regime classifier.
	GetBroadMarketSeries(ctx context.Context, indexID string, periods int) (market.Series, error)
}

// Account answers equity and holding queries against the brokerage's
// authoritative books.
type Account interface {
	GetEquity(ctx context.Context) (float64, error)

	// GetHolding returns the brokerage-reported position; a zero Holding
	// means flat, never an error.
	GetHolding(ctx context.Context, instrumentID string) (market.Holding, error)
}

// OrderResult reports a submitted order. Price and Amount reflect the fill
// when the brokerage confirms synchronously, the request otherwise.
type OrderResult struct {
	OrderID string
	Amount  int64
	Price   float64
}

// Executor submits orders. Both calls block until the brokerage accepts or
// rejects; timeouts are the brokerage adapter's concern.
type Executor interface {
	SubmitBuy(ctx context.Context, instrumentID string, amount int64, limitPrice float64) (OrderResult, error)
	SubmitSell(ctx context.Context, instrumentID string, amount int64, limitPrice float64) (OrderResult, error)
}

// Broker bundles the three collaborator contracts; both the paper engine
// and the brokerage adapter satisfy it.
type Broker interface {
	MarketData
	Account
	Executor
}
