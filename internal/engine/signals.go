package engine

import (
	"fmt"
	"math"

	"github.com/mbd888/accessguard/internal/baseline"
	"github.com/mbd888/accessguard/internal/event"
)

// Signal names, also used as classifier inputs and metric labels.
const (
	SignalTime    = "time"
	SignalNetwork = "network"
	SignalDevice  = "device"
	SignalClient  = "client"
	SignalBurst   = "burst"
	SignalGap     = "gap"
)

// Raw risk levels for the membership and cadence signals.
const (
	riskNewDevice  = 0.9
	riskNewClient  = 0.6
	riskNewCountry = 0.4
	riskNewASN     = 0.5
	riskBurst      = 0.7
	riskRapidGap   = 0.8
	riskFastGap    = 0.4
)

const (
	// minStdHour floors the hour std so a tight baseline cannot explode
	// z-scores.
	minStdHour = 1.0
	// maxZScore caps extreme deviations before the saturating curve.
	maxZScore = 6.0
)

// Each signal compares one event dimension against a single consistent
// profile snapshot and returns a raw risk in [0,1] plus a human-readable
// reason. Signals are pure reads; the engine takes the snapshot once per
// evaluation so no signal can observe a half-updated baseline.

// timeDeviationSignal scores how far the event hour sits from the learned
// access-hour distribution. The z-score is pushed through z/(z+3), a bounded
// saturating curve that tops out near 0.667 at the z cap.
func timeDeviationSignal(ev *event.AccessEvent, snap *baseline.Profile) (float64, string) {
	if snap.MeanAccessHour == nil || snap.StdAccessHour == nil {
		return 0, "no_time_baseline"
	}
	std := math.Max(*snap.StdAccessHour, minStdHour)
	z := math.Abs(float64(ev.Hour)-*snap.MeanAccessHour) / std
	z = math.Min(z, maxZScore)
	risk := z / (z + 3)
	return round3(risk), fmt.Sprintf("time_z=%g", round2(z))
}

// newDeviceSignal fires when the device fingerprint has never been seen.
func newDeviceSignal(ev *event.AccessEvent, snap *baseline.Profile) (float64, string) {
	if !snap.KnownDevices.Has(ev.DeviceFingerprint) {
		return riskNewDevice, "new_device"
	}
	return 0, "known_device"
}

// newClientSignal fires when the client type has never been seen.
func newClientSignal(ev *event.AccessEvent, snap *baseline.Profile) (float64, string) {
	if !snap.KnownClients.Has(ev.ClientType) {
		return riskNewClient, "new_client"
	}
	return 0, "known_client"
}

// networkSignal accumulates risk for an unseen country and an unseen ASN.
// Both firing yields 0.9; the cap only matters if the sub-risks are retuned.
func networkSignal(ev *event.AccessEvent, snap *baseline.Profile) (float64, string) {
	risk := 0.0
	reason := ""
	if !snap.KnownCountries.Has(ev.Country) {
		risk += riskNewCountry
		reason = "new_country"
	}
	if !snap.KnownASNs.Has(ev.ASN) {
		risk += riskNewASN
		if reason != "" {
			reason += ","
		}
		reason += "new_asn"
	}
	if reason == "" {
		reason = "known_network"
	}
	return math.Min(risk, 1.0), reason
}

// burstSignal compares the event count in the trailing wall-clock hour
// against the learned tolerance. The window is anchored at evaluation time,
// not the event timestamp, so replay and backfill can over- or under-count;
// that matches the recorded production behavior.
func burstSignal(recentCount int64, snap *baseline.Profile) (float64, string) {
	if snap.BurstThreshold == nil {
		return 0, "no_burst_baseline"
	}
	if float64(recentCount) > *snap.BurstThreshold {
		return riskBurst, fmt.Sprintf("burst_count=%d", recentCount)
	}
	return 0, "normal_frequency"
}

// interEventGapSignal fires when the gap since the previous event collapses
// well below the learned average.
func interEventGapSignal(ev *event.AccessEvent, snap *baseline.Profile) (float64, string) {
	if snap.AvgInterEventGap == nil || ev.TimeSinceLast == nil {
		return 0, "no_gap_baseline"
	}
	gap := *ev.TimeSinceLast
	avg := *snap.AvgInterEventGap
	if gap < avg*0.3 {
		return riskRapidGap, fmt.Sprintf("rapid_gap=%g", round2(gap))
	}
	if gap < avg*0.6 {
		return riskFastGap, fmt.Sprintf("fast_gap=%g", round2(gap))
	}
	return 0, "normal_gap"
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
