// Package ledger holds the durable per-instrument, per-tier position state
// and the mutation operations over it. Every mutation persists synchronously
// through a Store; a failed persist rolls the in-memory state back.
package ledger

import (
	"time"

	"github.com/rustyeddy/splitbot/pkg/id"
)

// SchemaVersion is the current persisted record version. Records written by
// older versions are migrated at load time.
const SchemaVersion = 2

// SellRecord is one append-only sellHistory entry. Manual marks entries
// synthesized by reconciliation rather than an engine-issued order.
type SellRecord struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Amount int64     `json:"amount"`
	Price  float64   `json:"price"`
	Profit float64   `json:"profit"`
	Manual bool      `json:"manual"`
}

// Tier is the atomic position unit: one of the N fixed sequential entry
// slots for an instrument.
type Tier struct {
	Number        int          `json:"number"`
	Filled        bool         `json:"is_filled"`
	EntryPrice    float64      `json:"entry_price"`
	EntryAmount   int64        `json:"entry_amount"`
	CurrentAmount int64        `json:"current_amount"`
	EntryDate     time.Time    `json:"entry_date"`
	SellHistory   []SellRecord `json:"sell_history"`
}

// clear empties the tier slot, keeping only its number.
func (t *Tier) clear() {
	*t = Tier{Number: t.Number}
}

// Record is the persisted ledger for one instrument. Created once on the
// first cycle that lacks one; never deleted.
type Record struct {
	SchemaVersion      int                `json:"schema_version"`
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Ready              bool               `json:"ready"`
	Tiers              []Tier             `json:"tiers"`
	RealizedPnLTotal   float64            `json:"realized_pnl_total"`
	RealizedPnLByMonth map[string]float64 `json:"realized_pnl_by_month"`
}

// NewRecord creates a fresh, not-ready record with tierCount empty tiers.
func NewRecord(instrumentID, name string, tierCount int) *Record {
	tiers := make([]Tier, tierCount)
	for i := range tiers {
		tiers[i].Number = i + 1
	}
	return &Record{
		SchemaVersion:      SchemaVersion,
		ID:                 instrumentID,
		Name:               name,
		Tiers:              tiers,
		RealizedPnLByMonth: map[string]float64{},
	}
}

// Tier returns the tier with the given 1-based number, or nil when out of
// range.
func (r *Record) Tier(n int) *Tier {
	if n < 1 || n > len(r.Tiers) {
		return nil
	}
	return &r.Tiers[n-1]
}

// TotalAmount sums currentAmount over filled tiers.
func (r *Record) TotalAmount() int64 {
	var total int64
	for i := range r.Tiers {
		if r.Tiers[i].Filled {
			total += r.Tiers[i].CurrentAmount
		}
	}
	return total
}

// AllFilled reports whether every tier slot is filled.
func (r *Record) AllFilled() bool {
	for i := range r.Tiers {
		if !r.Tiers[i].Filled {
			return false
		}
	}
	return len(r.Tiers) > 0
}

// Flat reports whether no tier holds anything.
func (r *Record) Flat() bool {
	for i := range r.Tiers {
		if r.Tiers[i].Filled {
			return false
		}
	}
	return true
}

// HighestFilled returns the highest filled tier number, or 0 when flat.
func (r *Record) HighestFilled() int {
	for i := len(r.Tiers) - 1; i >= 0; i-- {
		if r.Tiers[i].Filled {
			return r.Tiers[i].Number
		}
	}
	return 0
}

// Clone deep-copies the record so mutations can be staged and discarded.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Tiers = make([]Tier, len(r.Tiers))
	copy(cp.Tiers, r.Tiers)
	for i := range cp.Tiers {
		if h := r.Tiers[i].SellHistory; h != nil {
			cp.Tiers[i].SellHistory = make([]SellRecord, len(h))
			copy(cp.Tiers[i].SellHistory, h)
		}
	}
	cp.RealizedPnLByMonth = make(map[string]float64, len(r.RealizedPnLByMonth))
	for k, v := range r.RealizedPnLByMonth {
		cp.RealizedPnLByMonth[k] = v
	}
	return &cp
}

// addRealized books realized profit into the running total and the monthly
// breakdown.
func (r *Record) addRealized(profit float64, date time.Time) {
	r.RealizedPnLTotal += profit
	if r.RealizedPnLByMonth == nil {
		r.RealizedPnLByMonth = map[string]float64{}
	}
	r.RealizedPnLByMonth[date.Format("2006-01")] += profit
}

// migrate upgrades a loaded record in place to the current schema version,
// filling defaults for fields absent in older versions. tierCount pads a
// short tier array from configs written before the count was fixed.
func migrate(r *Record, tierCount int) {
	if r.RealizedPnLByMonth == nil {
		r.RealizedPnLByMonth = map[string]float64{}
	}
	for len(r.Tiers) < tierCount {
		r.Tiers = append(r.Tiers, Tier{Number: len(r.Tiers) + 1})
	}
	for i := range r.Tiers {
		t := &r.Tiers[i]
		t.Number = i + 1
		// v1 records predate sell-record ids.
		for j := range t.SellHistory {
			if t.SellHistory[j].ID == "" {
				t.SellHistory[j].ID = id.New()
			}
		}
		// Filled must track a positive amount.
		t.Filled = t.CurrentAmount > 0
	}
	r.SchemaVersion = SchemaVersion
}
