package kabu

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/splitbot/broker"
	"github.com/rustyeddy/splitbot/market"
)

// Adapter implements the broker contracts over the REST client. Every call
// blocks; the engine owns retry cadence (next cycle), not the adapter.
type Adapter struct {
	client   *Client
	exchange int
	log      zerolog.Logger
}

var _ broker.Broker = (*Adapter)(nil)

func NewAdapter(cfg Config, log zerolog.Logger) *Adapter {
	return &Adapter{
		client:   NewClient(cfg),
		exchange: cfg.Exchange,
		log:      log,
	}
}

func (a *Adapter) GetIndicatorSeries(ctx context.Context, instrumentID string, lookback int) (market.Series, error) {
	bars, err := a.client.GetDailyBars(instrumentID, lookback)
	if err != nil {
		return nil, err
	}
	return toSeries(bars), nil
}

func (a *Adapter) GetBroadMarketSeries(ctx context.Context, indexID string, periods int) (market.Series, error) {
	bars, err := a.client.GetDailyBars(indexID, periods)
	if err != nil {
		return nil, err
	}
	return toSeries(bars), nil
}

func (a *Adapter) GetEquity(ctx context.Context) (float64, error) {
	cash, err := a.client.GetCash()
	if err != nil {
		return 0, err
	}
	positions, err := a.client.GetPositions()
	if err != nil {
		return 0, err
	}
	equity := cash
	for _, p := range positions {
		equity += p.LeavesQty * p.CurrentPrice
	}
	return equity, nil
}

func (a *Adapter) GetHolding(ctx context.Context, instrumentID string) (market.Holding, error) {
	positions, err := a.client.GetPositions()
	if err != nil {
		return market.Holding{}, err
	}

	// The API reports one row per lot; fold them into a single holding with
	// a quantity-weighted average cost.
	var h market.Holding
	var costSum float64
	for _, p := range positions {
		if p.Symbol != instrumentID || p.LeavesQty <= 0 {
			continue
		}
		h.Amount += int64(p.LeavesQty)
		costSum += p.LeavesQty * p.Price
		h.UnrealizedPnL += p.ProfitLoss
	}
	if h.Amount > 0 {
		h.AvgPrice = costSum / float64(h.Amount)
	}
	return h, nil
}

func (a *Adapter) SubmitBuy(ctx context.Context, instrumentID string, amount int64, limitPrice float64) (broker.OrderResult, error) {
	return a.submit(instrumentID, "2", amount, limitPrice)
}

func (a *Adapter) SubmitSell(ctx context.Context, instrumentID string, amount int64, limitPrice float64) (broker.OrderResult, error) {
	return a.submit(instrumentID, "1", amount, limitPrice)
}

func (a *Adapter) submit(instrumentID, side string, amount int64, limitPrice float64) (broker.OrderResult, error) {
	resp, err := a.client.SendOrder(orderRequest{
		Symbol:         instrumentID,
		Exchange:       a.exchange,
		SecurityType:   1,
		Side:           side,
		CashMargin:     1,
		DelivType:      2,
		AccountType:    4,
		Qty:            int(amount),
		FrontOrderType: 20,
		Price:          limitPrice,
	})
	if err != nil {
		return broker.OrderResult{}, err
	}
	if resp.Result != 0 {
		return broker.OrderResult{}, fmt.Errorf("%w: ResultCode=%d", broker.ErrRejected, resp.Result)
	}
	a.log.Info().Str("instrument", instrumentID).Str("side", side).
		Int64("amount", amount).Float64("limit", limitPrice).Str("order_id", resp.OrderID).
		Msg("order accepted")
	return broker.OrderResult{OrderID: resp.OrderID, Amount: amount, Price: limitPrice}, nil
}

func toSeries(bars []candleBar) market.Series {
	series := make(market.Series, 0, len(bars))
	for _, b := range bars {
		t, _ := time.Parse("2006-01-02", b.Date)
		series = append(series, market.Candle{
			Time:   t,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return series
}
