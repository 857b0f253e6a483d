// Package plan turns an indicator snapshot, regime parameters and a sleeve
// budget into per-tier invest amounts and target/trigger rates.
package plan

import "math"

// Budget computes the per-instrument sleeve budget:
// equity x sleeve ratio x instrument weight. Non-finite or negative inputs
// clamp to zero.
func Budget(equity, sleeveRatio, weight float64) float64 {
	b := equity * sleeveRatio * weight
	if math.IsNaN(b) || b < 0 {
		return 0
	}
	return b
}
