package plan

import (
	"fmt"
	"math"

	"github.com/rustyeddy/splitbot/market"
	"github.com/rustyeddy/splitbot/regime"
)

// TierPlan carries the per-tier plan for one cycle. InvestMoney is in whole
// currency units. TriggerRate is zero for tier 1 (first entries are gated by
// the entry condition, not a loss trigger).
type TierPlan struct {
	Tier        int
	TargetRate  float64
	TriggerRate float64
	InvestMoney int64
}

// Plan is the full tier plan for one instrument and one cycle.
type Plan struct {
	InstrumentID string
	Tiers        []TierPlan // index 0 holds tier 1
}

// Tier returns the plan for tier n (1-based). Out-of-range tiers return a
// zero plan.
func (p *Plan) Tier(n int) TierPlan {
	if n < 1 || n > len(p.Tiers) {
		return TierPlan{}
	}
	return p.Tiers[n-1]
}

// FirstInvestRatio is the fraction of the instrument budget reserved for
// tier 1: the stock-type base scaled by entry aggressiveness, clamped to
// [0.20,0.60].
func FirstInvestRatio(cfg market.InstrumentConfig, params regime.Params) float64 {
	base := 0.30
	if cfg.IsGrowth() {
		base = 0.45
	}
	return clamp(base*params.EntryAggressiveness, 0.20, 0.60)
}

// Build constructs the tier plan. budget is the instrument's sleeve budget
// in currency units; tierCount is the fixed tier count N. All invest
// amounts are rounded to whole currency units; NaN or negative intermediate
// values clamp to zero rather than failing.
func Build(snap *market.Snapshot, params regime.Params, cfg market.InstrumentConfig, state regime.State, budget float64, tierCount int) (*Plan, error) {
	if snap == nil {
		return nil, fmt.Errorf("plan: nil snapshot")
	}
	if tierCount < 2 {
		return nil, fmt.Errorf("plan: tierCount must be at least 2, got %d", tierCount)
	}
	if math.IsNaN(budget) || budget < 0 {
		budget = 0
	}

	ratio := FirstInvestRatio(cfg, params)
	firstSlice := budget * ratio
	remaining := budget * (1 - ratio)

	growthBull := cfg.IsGrowth() && state.Regime.Bullish()

	p := &Plan{
		InstrumentID: snap.InstrumentID,
		Tiers:        make([]TierPlan, tierCount),
	}

	// Tier 1: score-sized entry, no trigger.
	score := FirstEntryScore(snap, params, state, tierCount)
	t1Target := snap.TargetRate * params.TargetMultiplier
	if growthBull {
		t1Target *= 0.9
	}
	p.Tiers[0] = TierPlan{
		Tier:        1,
		TargetRate:  sane(t1Target),
		InvestMoney: roundMoney(firstSlice * clamp(score/100, 0, 1)),
	}

	// Tiers 2..N: weighted split of the remaining budget.
	weights := make([]float64, tierCount+1) // indexed by tier number
	var weightSum float64
	for tier := 2; tier <= tierCount; tier++ {
		w := tierWeight(tier, tierCount)
		weights[tier] = w
		weightSum += w
	}

	for tier := 2; tier <= tierCount; tier++ {
		norm := 0.0
		if weightSum > 0 {
			norm = weights[tier] / weightSum
		}

		// Multiplication order is load-bearing: each factor is applied in
		// sequence, not algebraically merged.
		trigger := snap.TriggerRate
		trigger *= params.TriggerSensitivity
		trigger *= triggerBandFactor(tier, tierCount)
		if cfg.IsGrowth() {
			trigger *= 0.7
		}
		if growthBull {
			trigger *= 0.8
		}

		target := snap.TargetRate
		if growthBull {
			target *= 0.9
		}

		p.Tiers[tier-1] = TierPlan{
			Tier:        tier,
			TargetRate:  sane(target),
			TriggerRate: sane(trigger),
			InvestMoney: roundMoney(remaining * norm),
		}
	}

	return p, nil
}

// FirstEntryScore is the additive 0-100+ tier-1 sizing score: MA alignment
// (scaled by aggressiveness), MA slope checks, a step-position bonus, a
// regime-dependent RSI penalty and a pullback bonus.
func FirstEntryScore(snap *market.Snapshot, params regime.Params, state regime.State, tierCount int) float64 {
	score := 0.0

	// MA alignment, scaled by aggressiveness.
	align := 0.0
	if snap.Price > snap.MAShort {
		align += 10
	}
	if snap.MAShort > snap.MAMid {
		align += 10
	}
	if snap.MAMid > snap.MALong {
		align += 10
	}
	score += align * params.EntryAggressiveness

	// Rising slopes, per MA.
	if snap.MAShort > snap.PrevMAShort {
		score += 5
	}
	if snap.MAMid > snap.PrevMAMid {
		score += 5
	}
	if snap.MALong > snap.PrevMALong {
		score += 5
	}

	// Cheaper steps score higher: step 1 earns the full 50-point band.
	score += float64(tierCount+1-snap.Step) * (50 / float64(tierCount))

	// Overbought penalty, stricter outside bull regimes.
	rsiCeiling := 60.0
	if state.Regime.Bullish() {
		rsiCeiling = 70
	}
	if snap.RSI > rsiCeiling {
		penalty := snap.RSI - rsiCeiling
		if penalty > 20 {
			penalty = 20
		}
		score -= penalty
	}

	// Pullback bonus: at least 1 point, growing with pullback depth past the
	// required threshold.
	if params.PullbackRequired > 0 {
		score += math.Max(1, snap.PullbackPct/params.PullbackRequired)
	}

	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return score
}

// tierWeight front-loads low tiers and trims the deepest band.
func tierWeight(tier, tierCount int) float64 {
	switch {
	case tier <= 3:
		return 1.2
	case tier >= tierCount-1:
		return 0.8
	default:
		return 1.0
	}
}

// triggerBandFactor shallows low-tier triggers and deepens the last band.
func triggerBandFactor(tier, tierCount int) float64 {
	switch {
	case tier <= 3:
		return 0.6
	case tier >= tierCount-1:
		return 1.3
	default:
		return 1.0
	}
}

func roundMoney(v float64) int64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return int64(math.Round(v))
}

func sane(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
