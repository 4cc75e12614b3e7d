package engine

import (
	"math"

	"github.com/mbd888/accessguard/internal/event"
)

// verdict combines the instantaneous score with the accumulated identity risk
// and maps the result onto the three-level scale. identityRisk must be the
// value PRIOR to this event's accumulator update — suspicion earned by this
// event escalates future verdicts, not its own.
func (e *Engine) verdict(riskScore, identityRisk float64) event.Verdict {
	combined := math.Min(riskScore+identityRisk*e.params.IdentityWeight, 1.0)
	switch {
	case combined < e.params.NormalThreshold:
		return event.VerdictNormal
	case combined < e.params.SuspiciousThreshold:
		return event.VerdictSuspicious
	default:
		return event.VerdictHighRisk
	}
}
