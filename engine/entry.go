package engine

import (
	"github.com/rustyeddy/splitbot/market"
	"github.com/rustyeddy/splitbot/regime"
)

// firstEntrySignal evaluates the tier-1 entry condition and names the path
// that passed. Paths, in evaluation order:
//
//  1. chart pattern: short MA crossing above the mid MA in an uptrend;
//  2. pullback entry: regime-adjusted RSI band, pullback past the dynamic
//     threshold, a rising short MA and positive bar-over-bar momentum;
//  3. aggressive override: entry aggressiveness above 1.2 in an uptrend;
//  4. oversold reversal: RSI under 25 with a strong green candle.
//
// A rapid-rise bar vetoes everything except the oversold reversal.
func firstEntrySignal(snap *market.Snapshot, params regime.Params, state regime.State) (bool, string) {
	if snap.RSI < 25 && snap.Price > snap.Open*1.02 {
		return true, "oversold_reversal"
	}
	if snap.RapidRise {
		return false, ""
	}

	goldenCross := snap.MAShort > snap.MAMid && snap.PrevMAShort <= snap.PrevMAMid
	if goldenCross && snap.Trend == market.TrendUp {
		return true, "golden_cross"
	}

	rsiBand := 45.0
	switch {
	case state.Regime.Bullish():
		rsiBand = 55
	case state.Regime <= regime.Downtrend:
		rsiBand = 40
	}
	if snap.RSI < rsiBand &&
		snap.PullbackPct >= params.PullbackRequired &&
		snap.MAShort > snap.PrevMAShort &&
		snap.Price > snap.PrevPrice {
		return true, "pullback_entry"
	}

	if params.EntryAggressiveness > 1.2 && snap.Trend == market.TrendUp {
		return true, "aggressive_override"
	}

	return false, ""
}

// additionalEntryConfirmed is the tier-parity confirmation for laddering
// into tier n after its predecessor breached the trigger: even tiers demand
// price under the short MA, odd tiers a sub-50 RSI, so consecutive tiers
// never fire on the same single condition.
func additionalEntryConfirmed(snap *market.Snapshot, tier int) bool {
	if tier%2 == 0 {
		return snap.Price < snap.MAShort
	}
	return snap.RSI < 50
}

// smallPullbackSignal spots a shallow dip inside an intact uptrend: deep
// enough to matter, shy of the full pullback threshold, price still above
// the long MA. Growth instruments may ladder tiers 2..3 on it without a
// trigger breach, at reduced size.
func smallPullbackSignal(snap *market.Snapshot, params regime.Params) bool {
	return snap.Trend == market.TrendUp &&
		snap.Price > snap.MALong &&
		snap.PullbackPct >= 2 &&
		snap.PullbackPct < params.PullbackRequired
}
