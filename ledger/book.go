package ledger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/splitbot/pkg/id"
)

// Book owns every instrument record. All access goes through it; the single
// decision thread means no locking, but every mutation is staged on a clone
// and committed only after the store accepts it, so memory and disk cannot
// diverge past what next cycle's reconciliation heals.
type Book struct {
	store     Store
	recs      map[string]*Record
	tierCount int
	log       zerolog.Logger
}

// NewBook loads all records from the store, migrating each to the current
// schema version in memory. Migrated state is written back on the record's
// next mutation.
func NewBook(store Store, tierCount int, log zerolog.Logger) (*Book, error) {
	if tierCount < 2 {
		return nil, fmt.Errorf("ledger: tierCount must be at least 2, got %d", tierCount)
	}
	recs, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	for _, r := range recs {
		if r.SchemaVersion != SchemaVersion {
			log.Info().Str("instrument", r.ID).
				Int("from", r.SchemaVersion).Int("to", SchemaVersion).
				Msg("migrating ledger record")
		}
		migrate(r, tierCount)
	}
	return &Book{store: store, recs: recs, tierCount: tierCount, log: log}, nil
}

// Get returns the record for an instrument, or nil if none exists yet.
// Callers must treat the result as read-only; mutations go through the
// operation methods.
func (b *Book) Get(instrumentID string) *Record {
	return b.recs[instrumentID]
}

// All returns every record, keyed by instrument id.
func (b *Book) All() map[string]*Record {
	return b.recs
}

// GetOrCreate returns the existing record or creates, persists and returns
// a fresh not-ready one.
func (b *Book) GetOrCreate(instrumentID, name string) (*Record, error) {
	if r, ok := b.recs[instrumentID]; ok {
		return r, nil
	}
	r := NewRecord(instrumentID, name, b.tierCount)
	if err := b.store.Upsert(r); err != nil {
		return nil, fmt.Errorf("%w: create %q: %v", ErrPersist, instrumentID, err)
	}
	b.recs[instrumentID] = r
	b.log.Info().Str("instrument", instrumentID).Msg("ledger record created")
	return r, nil
}

// mutate stages fn on a clone of the record, persists the clone and swaps
// it in. A store failure discards the staged mutation and surfaces
// ErrPersist.
func (b *Book) mutate(instrumentID string, fn func(*Record) error) error {
	cur, ok := b.recs[instrumentID]
	if !ok {
		return fmt.Errorf("ledger: no record for %q", instrumentID)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := b.store.Upsert(next); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrPersist, instrumentID, err)
	}
	b.recs[instrumentID] = next
	return nil
}

// MarkReady flips the ready flag, enabling first entries from the next
// cycle on.
func (b *Book) MarkReady(instrumentID string) error {
	return b.mutate(instrumentID, func(r *Record) error {
		r.Ready = true
		return nil
	})
}

// ApplyFill records a buy fill into a tier: entry fields set, amount added.
// Filling tier 1 from fully-flat starts a new round and resets realized
// P&L.
func (b *Book) ApplyFill(instrumentID string, tier int, price float64, amount int64, date time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: fill amount must be positive, got %d", amount)
	}
	return b.mutate(instrumentID, func(r *Record) error {
		t := r.Tier(tier)
		if t == nil {
			return fmt.Errorf("ledger: %q has no tier %d", instrumentID, tier)
		}
		if t.Filled {
			return fmt.Errorf("ledger: %q tier %d already filled", instrumentID, tier)
		}
		if tier == 1 && r.Flat() {
			r.RealizedPnLTotal = 0
			r.RealizedPnLByMonth = map[string]float64{}
		}
		t.Filled = true
		t.EntryPrice = price
		t.EntryAmount = amount
		t.CurrentAmount = amount
		t.EntryDate = date
		t.SellHistory = nil
		return nil
	})
}

// ApplyExit records a (partial or full) sell from a tier: currentAmount
// reduced with a floor of zero, one sellHistory entry appended, realized
// P&L booked. Filled flips false exactly when the amount reaches zero.
func (b *Book) ApplyExit(instrumentID string, tier int, soldAmount int64, price, realizedPnL float64, date time.Time, manual bool) error {
	if soldAmount <= 0 {
		return fmt.Errorf("ledger: exit amount must be positive, got %d", soldAmount)
	}
	return b.mutate(instrumentID, func(r *Record) error {
		t := r.Tier(tier)
		if t == nil {
			return fmt.Errorf("ledger: %q has no tier %d", instrumentID, tier)
		}
		if !t.Filled {
			return fmt.Errorf("ledger: %q tier %d is not filled", instrumentID, tier)
		}
		if soldAmount > t.CurrentAmount {
			soldAmount = t.CurrentAmount
		}
		t.CurrentAmount -= soldAmount
		t.SellHistory = append(t.SellHistory, SellRecord{
			ID:     id.New(),
			Date:   date,
			Amount: soldAmount,
			Price:  price,
			Profit: realizedPnL,
			Manual: manual,
		})
		if t.CurrentAmount == 0 {
			t.Filled = false
		}
		r.addRealized(realizedPnL, date)
		return nil
	})
}

// ApplySurplus attributes a broker-over-ledger share surplus to one tier:
// currentAmount grows by delta and entryPrice is overwritten with the
// broker's average cost. No sellHistory entry is added.
func (b *Book) ApplySurplus(instrumentID string, tier int, delta int64, avgPrice float64) error {
	if delta <= 0 {
		return fmt.Errorf("ledger: surplus delta must be positive, got %d", delta)
	}
	return b.mutate(instrumentID, func(r *Record) error {
		t := r.Tier(tier)
		if t == nil {
			return fmt.Errorf("ledger: %q has no tier %d", instrumentID, tier)
		}
		if !t.Filled {
			return fmt.Errorf("ledger: %q tier %d is not filled", instrumentID, tier)
		}
		t.CurrentAmount += delta
		if avgPrice > 0 {
			t.EntryPrice = avgPrice
		}
		return nil
	})
}

// RebalanceAfterDeepDrawdown runs the cascade that frees the deepest slot
// once every tier is filled and the last tier has breached its trigger:
// tier 2 exits fully at the given price, tiers 3..N shift down into slots
// 2..N-1, and slot N clears except for the dropped lot's sell history,
// which it inherits. Tier 1 is never disturbed.
func (b *Book) RebalanceAfterDeepDrawdown(instrumentID string, price float64, date time.Time) error {
	return b.mutate(instrumentID, func(r *Record) error {
		if !r.AllFilled() {
			return fmt.Errorf("ledger: %q rebalance requires all %d tiers filled", instrumentID, len(r.Tiers))
		}
		n := len(r.Tiers)

		// Drop the second-oldest lot. The exit books through sellHistory so
		// the realized loss is visible like any other sale.
		t2 := &r.Tiers[1]
		sold := t2.CurrentAmount
		profit := (price - t2.EntryPrice) * float64(sold)
		dropped := append(t2.SellHistory, SellRecord{
			ID:     id.New(),
			Date:   date,
			Amount: sold,
			Price:  price,
			Profit: profit,
		})
		r.addRealized(profit, date)

		// Shift 3..N down one slot, renumbering. The shift overwrites the
		// dropped lot's slot, so its history is re-attached to the vacated
		// slot N; every exit stays backed by a persisted sell record.
		for i := 1; i < n-1; i++ {
			r.Tiers[i] = r.Tiers[i+1]
			r.Tiers[i].Number = i + 1
		}
		r.Tiers[n-1].clear()
		r.Tiers[n-1].SellHistory = dropped

		b.log.Info().Str("instrument", instrumentID).
			Int64("sold", sold).Float64("price", price).Float64("profit", profit).
			Msg("deep drawdown cascade")
		return nil
	})
}
