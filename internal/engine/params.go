package engine

// Params is the immutable tuning surface of the scoring engine, injected at
// construction. Weights are per-signal multipliers on raw risk.
type Params struct {
	WeightTime    float64
	WeightNetwork float64
	WeightDevice  float64
	WeightClient  float64
	WeightBurst   float64
	WeightGap     float64

	// SynergyMultiplier amplifies the weighted sum when at least
	// SynergyMinSignals signals fire at once.
	SynergyMultiplier float64
	SynergyMinSignals int

	// Verdict thresholds on the combined score: below NormalThreshold is
	// NORMAL, below SuspiciousThreshold is SUSPICIOUS, else HIGH_RISK.
	NormalThreshold     float64
	SuspiciousThreshold float64

	// IdentityDecay is the per-hour multiplicative decay applied to the
	// accumulated identity risk. IdentityWeight scales how much accumulated
	// risk bleeds into each verdict.
	IdentityDecay  float64
	IdentityWeight float64

	// LearningThreshold is the event count at which the baseline freezes.
	LearningThreshold int64
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		WeightTime:          0.20,
		WeightNetwork:       0.25,
		WeightDevice:        0.35,
		WeightClient:        0.30,
		WeightBurst:         0.30,
		WeightGap:           0.30,
		SynergyMultiplier:   1.25,
		SynergyMinSignals:   3,
		NormalThreshold:     0.30,
		SuspiciousThreshold: 0.60,
		IdentityDecay:       0.95,
		IdentityWeight:      0.5,
		LearningThreshold:   5,
	}
}
