// Package policy maps a liquidator's tier to the minimum collateralization
// percentage below which positions become eligible for liquidation. Lower
// tier numbers were granted earlier and liquidate at healthier ratios.
package policy

import "github.com/shopspring/decimal"

var (
	baseThreshold = decimal.RequireFromString("110.00")
	tierOneCeil   = decimal.RequireFromString("125.00")
	tierStep      = decimal.RequireFromString("0.50")
)

// ThresholdFor returns the liquidation threshold percentage for a tier.
// Tier 0 carries no special standing and gets the 110.00% floor. For tiers
// >= 1 the threshold starts at 125.00% and decays by 0.50 percentage points
// per tier step, never dropping below the floor.
func ThresholdFor(tierID uint64) decimal.Decimal {
	if tierID == 0 {
		return baseThreshold
	}
	steps := decimal.NewFromUint64(tierID - 1)
	threshold := tierOneCeil.Sub(tierStep.Mul(steps))
	if threshold.LessThan(baseThreshold) {
		return baseThreshold
	}
	return threshold
}
