// Package recon aligns ledger totals with the brokerage's authoritative
// holdings once per cycle, before any decision runs. The ledger is treated
// as an eventually-consistent projection of broker truth: attribution of a
// share delta to specific tiers is a conservative heuristic, never an exact
// per-lot identity.
package recon

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/splitbot/ledger"
	"github.com/rustyeddy/splitbot/market"
)

// Adjustment summarizes what one reconciliation pass did.
type Adjustment struct {
	InstrumentID string
	Delta        int64 // broker total minus ledger total; 0 means no-op
	SurplusTier  int   // tier credited on a surplus
	DeficitTiers []int // tiers drained on a deficit, highest first
}

// Engine applies surplus/deficit corrections through the ledger book so
// every correction is persisted with the same rollback semantics as a
// trade.
type Engine struct {
	book *ledger.Book
	log  zerolog.Logger
}

func New(book *ledger.Book, log zerolog.Logger) *Engine {
	return &Engine{book: book, log: log}
}

// Reconcile compares the ledger total for one instrument against the
// broker-reported holding and corrects the ledger:
//
//   - surplus (broker > ledger): the whole delta is attributed to the
//     highest filled tier, whose entry price becomes the broker average
//     cost;
//   - deficit (broker < ledger): the shortfall drains tiers from the
//     highest filled one downward, appending a zero-profit manual sell
//     record per touched tier;
//   - equal: no-op, making a repeated run idempotent.
//
// A flat ledger with a non-zero broker holding is left alone: first-entry
// adoption owns that case.
func (e *Engine) Reconcile(rec *ledger.Record, holding market.Holding, now time.Time) (Adjustment, error) {
	adj := Adjustment{InstrumentID: rec.ID}

	ledgerTotal := rec.TotalAmount()
	adj.Delta = holding.Amount - ledgerTotal
	if adj.Delta == 0 || rec.Flat() {
		adj.Delta = 0
		return adj, nil
	}

	if adj.Delta > 0 {
		top := rec.HighestFilled()
		if err := e.book.ApplySurplus(rec.ID, top, adj.Delta, holding.AvgPrice); err != nil {
			return adj, err
		}
		adj.SurplusTier = top
		e.log.Info().Str("instrument", rec.ID).
			Int64("delta", adj.Delta).Int("tier", top).Float64("avg_price", holding.AvgPrice).
			Msg("reconciled surplus")
		return adj, nil
	}

	// Deficit: drain top-down. Each drained tier books a manual zero-profit
	// sell record; reaching zero flips the tier empty.
	shortfall := -adj.Delta
	for tier := rec.HighestFilled(); tier >= 1 && shortfall > 0; tier-- {
		t := rec.Tier(tier)
		if t == nil || !t.Filled {
			continue
		}
		take := t.CurrentAmount
		if take > shortfall {
			take = shortfall
		}
		if err := e.book.ApplyExit(rec.ID, tier, take, 0, 0, now, true); err != nil {
			return adj, err
		}
		shortfall -= take
		adj.DeficitTiers = append(adj.DeficitTiers, tier)
		// The book swapped in a fresh record; re-read before the next tier.
		rec = e.book.Get(rec.ID)
	}

	e.log.Info().Str("instrument", rec.ID).
		Int64("delta", adj.Delta).Ints("tiers", adj.DeficitTiers).
		Msg("reconciled deficit")
	return adj, nil
}
