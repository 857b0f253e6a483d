package market

// Snapshot is the per-cycle technical snapshot of one instrument. It is
// ephemeral: rebuilt every decision cycle from the latest candle series and
// never persisted.
type Snapshot struct {
	InstrumentID string

	Price     float64 // latest close
	PrevPrice float64 // prior close
	Open      float64 // latest open

	// Short/mid/long moving averages, current and prior bar.
	MAShort     float64
	MAMid       float64
	MALong      float64
	PrevMAShort float64
	PrevMAMid   float64
	PrevMALong  float64

	// Weighted extrema over blended full + recent windows.
	WeightedMax float64
	WeightedMin float64

	RSI float64
	ATR float64

	// PullbackPct is the % decline from the 30-period high (>= 0).
	PullbackPct float64

	// Derived rates. GapRate spans the weighted min/max band; TargetRate and
	// TriggerRate are the raw per-tier gain/loss thresholds before policy
	// scaling (TriggerRate <= 0).
	GapRate     float64
	TargetRate  float64
	TriggerRate float64

	// Step locates the current price inside the weighted band, 1 (cheap)
	// through the configured tier count (expensive).
	Step int

	Trend     Trend
	RapidRise bool
}

// Trend is a coarse tag of the snapshot's own price structure, independent
// of the broad-market regime.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendFlat Trend = "flat"
	TrendDown Trend = "down"
)

// Holding is the brokerage-reported position for one instrument. A zero
// value means flat.
type Holding struct {
	Amount        int64
	AvgPrice      float64
	UnrealizedPnL float64
}
