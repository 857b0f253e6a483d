package regime

import "github.com/rustyeddy/splitbot/market"

// Params are the dynamic trading parameters resolved per cycle from the
// market regime and the instrument's stock type.
type Params struct {
	PullbackRequired    float64 // % pullback demanded before a first entry
	TargetMultiplier    float64 // scales per-tier exit target rates
	PartialSellRatio    float64 // fraction of a tier sold on a growth partial exit
	TriggerSensitivity  float64 // scales per-tier entry trigger rates
	EntryAggressiveness float64 // scales first-entry sizing and scoring
}

// presets indexes the parameter table by Regime. Fields are monotonic in
// bullishness: more bullish regimes demand smaller pullbacks and targets,
// tolerate shallower triggers, and size entries and partial sells larger.
var presets = [...]Params{
	StrongDowntrend:   {PullbackRequired: 10, TargetMultiplier: 1.5, PartialSellRatio: 0.30, TriggerSensitivity: 1.3, EntryAggressiveness: 0.6},
	Downtrend:         {PullbackRequired: 8, TargetMultiplier: 1.4, PartialSellRatio: 0.35, TriggerSensitivity: 1.2, EntryAggressiveness: 0.7},
	Neutral:           {PullbackRequired: 6, TargetMultiplier: 1.2, PartialSellRatio: 0.40, TriggerSensitivity: 1.1, EntryAggressiveness: 1.0},
	Uptrend:           {PullbackRequired: 5, TargetMultiplier: 1.1, PartialSellRatio: 0.50, TriggerSensitivity: 1.0, EntryAggressiveness: 1.1},
	StrongUptrend:     {PullbackRequired: 4, TargetMultiplier: 1.0, PartialSellRatio: 0.55, TriggerSensitivity: 0.9, EntryAggressiveness: 1.2},
	VeryStrongUptrend: {PullbackRequired: 3, TargetMultiplier: 0.9, PartialSellRatio: 0.60, TriggerSensitivity: 0.8, EntryAggressiveness: 1.3},
}

// ParamsFor resolves the trading parameters for a regime state and stock
// type. The regime score scales entry aggressiveness continuously within
// [0.8,1.2] of the preset; growth instruments tighten targets and triggers.
// Out-of-range regimes degrade to the neutral preset; the function never
// fails.
func ParamsFor(state State, stockType market.StockType) Params {
	r := state.Regime
	if r < StrongDowntrend || r > VeryStrongUptrend {
		r = Neutral
	}
	p := presets[r]

	scale := state.Score / 50
	if scale < 0.8 {
		scale = 0.8
	}
	if scale > 1.2 {
		scale = 1.2
	}
	p.EntryAggressiveness *= scale

	if stockType == market.TypeGrowth {
		p.TargetMultiplier *= 0.9
		p.TriggerSensitivity *= 0.8
	}

	return p
}
