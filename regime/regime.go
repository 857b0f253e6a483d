// Package regime classifies the broad market into six ordered trend buckets
// and maps each bucket to the dynamic trading parameters used by the tier
// plan builder.
package regime

// Regime is the discretized broad-market trend strength, ordered from most
// bearish to most bullish.
type Regime int

const (
	StrongDowntrend Regime = iota
	Downtrend
	Neutral
	Uptrend
	StrongUptrend
	VeryStrongUptrend
)

func (r Regime) String() string {
	switch r {
	case StrongDowntrend:
		return "strong_downtrend"
	case Downtrend:
		return "downtrend"
	case Neutral:
		return "neutral"
	case Uptrend:
		return "uptrend"
	case StrongUptrend:
		return "strong_uptrend"
	case VeryStrongUptrend:
		return "very_strong_uptrend"
	default:
		return "unknown"
	}
}

// Bullish reports whether the regime is at least an uptrend.
func (r Regime) Bullish() bool {
	return r >= Uptrend
}

// State is the classifier output: the bucket plus the additive score that
// produced it (0..100+).
type State struct {
	Regime Regime
	Score  float64
}

// NeutralState is the fail-closed classifier result for missing or short
// input data.
func NeutralState() State {
	return State{Regime: Neutral, Score: 0}
}
