// Package vitals holds the physiological reference data: activity tier
// classification and the population normal ranges per (parameter, tier).
package vitals

// Tier is the discretized activity level used to select context-appropriate
// reference values.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// ClassifyActivity maps a raw activity intensity to a tier. Total and pure:
// [0,50] -> low, [51,100] -> medium, everything above -> high. Negative
// values cannot reach this point (rejected at ingest validation) but would
// classify as low.
func ClassifyActivity(activity int) Tier {
	switch {
	case activity <= 50:
		return TierLow
	case activity <= 100:
		return TierMedium
	default:
		return TierHigh
	}
}
