package engine

import (
	"math"

	"github.com/mbd888/accessguard/internal/baseline"
	"github.com/mbd888/accessguard/internal/event"
)

// scoreResult is one full scoring pass over an event.
type scoreResult struct {
	Final     float64
	Details   []event.SignalDetail
	Synergy   float64
	Triggered []string
}

// score runs all six signals against one profile snapshot, applies the
// per-signal weights, and amplifies the total when enough signals fire.
//
// Detail records carry raw risk and contribution rounded to 3 decimals for
// display; the accumulation itself uses the unrounded values, so the listed
// contributions may not sum exactly to the final score. Deliberate — the
// stored breakdown is a human-facing explanation, not an audit ledger.
func (e *Engine) score(ev *event.AccessEvent, snap *baseline.Profile, recentCount int64) scoreResult {
	type signalRun struct {
		name   string
		weight float64
		raw    float64
		reason string
	}

	runs := make([]signalRun, 0, 6)
	add := func(name string, weight, raw float64, reason string) {
		runs = append(runs, signalRun{name: name, weight: weight, raw: raw, reason: reason})
	}

	r, reason := timeDeviationSignal(ev, snap)
	add(SignalTime, e.params.WeightTime, r, reason)

	r, reason = networkSignal(ev, snap)
	add(SignalNetwork, e.params.WeightNetwork, r, reason)

	r, reason = newDeviceSignal(ev, snap)
	add(SignalDevice, e.params.WeightDevice, r, reason)

	r, reason = newClientSignal(ev, snap)
	add(SignalClient, e.params.WeightClient, r, reason)

	r, reason = burstSignal(recentCount, snap)
	add(SignalBurst, e.params.WeightBurst, r, reason)

	r, reason = interEventGapSignal(ev, snap)
	add(SignalGap, e.params.WeightGap, r, reason)

	var (
		total     float64
		triggered []string
		details   = make([]event.SignalDetail, 0, len(runs))
	)
	for _, run := range runs {
		contribution := run.raw * run.weight
		total += contribution
		if run.raw > 0 {
			triggered = append(triggered, run.name)
		}
		details = append(details, event.SignalDetail{
			Name:         run.name,
			RawRisk:      round3(run.raw),
			Weight:       run.weight,
			Contribution: round3(contribution),
			Reason:       run.reason,
		})
	}

	synergy := 1.0
	if len(triggered) >= e.params.SynergyMinSignals {
		synergy = e.params.SynergyMultiplier
		total *= synergy
	}

	return scoreResult{
		Final:     math.Min(total, 1.0),
		Details:   details,
		Synergy:   synergy,
		Triggered: triggered,
	}
}
