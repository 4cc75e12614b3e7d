package engine

import "github.com/mbd888/accessguard/internal/event"

// classifyAttack maps the set of triggered signal names to a coarse attack
// label. Rules are checked in priority order: three or more simultaneous
// signals always win, then the pairwise combinations, then single signals.
func classifyAttack(triggered []string) event.AttackType {
	names := make(map[string]bool, len(triggered))
	for _, n := range triggered {
		names[n] = true
	}

	switch {
	case len(triggered) >= 3:
		return event.AttackMultiVector
	case names[SignalGap] && names[SignalBurst]:
		return event.AttackAutomation
	case names[SignalDevice] && names[SignalNetwork]:
		return event.AttackDeviceCompromise
	case names[SignalDevice]:
		return event.AttackDeviceAnomaly
	case names[SignalNetwork]:
		return event.AttackNetworkAnomaly
	case names[SignalTime]:
		return event.AttackTimeAnomaly
	case names[SignalBurst]:
		return event.AttackBurstAbuse
	default:
		return event.AttackNormalBehavior
	}
}
