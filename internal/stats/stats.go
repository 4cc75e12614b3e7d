// Package stats provides single-pass streaming estimators for the behavioral
// baseline: an exponential moving average and an EMA-style incremental
// standard deviation. Nothing here stores history — each update folds one new
// observation into the previous estimate.
package stats

import "math"

// DefaultAlpha is the smoothing factor used for baseline hour statistics.
const DefaultAlpha = 0.05

// varianceFloor prevents a degenerate zero variance, which would blow up
// z-score computations downstream.
const varianceFloor = 1e-6

// UpdateEMA folds a new observation into an exponential moving average.
// A nil old value means cold start: the first observation becomes the average.
func UpdateEMA(old *float64, value, alpha float64) float64 {
	if old == nil {
		return value
	}
	return *old + alpha*(value-*old)
}

// UpdateStd incrementally updates a standard deviation estimate. The previous
// std is squared back into a variance, nudged toward the squared deviation of
// the new observation from the previous mean, floored, and rooted again.
// Returns 1.0 when either prior estimate is missing.
func UpdateStd(oldStd, oldMean *float64, value, alpha float64) float64 {
	if oldStd == nil || oldMean == nil {
		return 1.0
	}
	variance := *oldStd * *oldStd
	dev := value - *oldMean
	variance += alpha * (dev*dev - variance)
	return math.Sqrt(math.Max(variance, varianceFloor))
}
