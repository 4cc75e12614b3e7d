package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mbd888/accessguard/internal/baseline"
	"github.com/mbd888/accessguard/internal/event"
)

func f(v float64) *float64 { return &v }

func knownProfile() *baseline.Profile {
	p := baseline.NewProfile()
	p.MeanAccessHour = f(14)
	p.StdAccessHour = f(2)
	p.BurstThreshold = f(10)
	p.AvgInterEventGap = f(100)
	p.KnownCountries.Add("IN")
	p.KnownASNs.Add("AS_LOCAL")
	p.KnownClients.Add("cli")
	p.KnownDevices.Add("fp-1")
	return p
}

func TestTimeDeviationSignal(t *testing.T) {
	p := knownProfile()

	risk, reason := timeDeviationSignal(&event.AccessEvent{Hour: 14}, p)
	assert.Equal(t, 0.0, risk)
	assert.Equal(t, "time_z=0", reason)

	// z = |20-14|/2 = 3 -> 3/6 = 0.5
	risk, reason = timeDeviationSignal(&event.AccessEvent{Hour: 20}, p)
	assert.Equal(t, 0.5, risk)
	assert.Equal(t, "time_z=3", reason)
}

func TestTimeDeviationSignal_StdFloor(t *testing.T) {
	p := knownProfile()
	p.StdAccessHour = f(0.1)

	// std floored at 1, so z = |16-14|/1 = 2 -> 2/5 = 0.4
	risk, _ := timeDeviationSignal(&event.AccessEvent{Hour: 16}, p)
	assert.Equal(t, 0.4, risk)
}

func TestTimeDeviationSignal_ZCap(t *testing.T) {
	p := knownProfile()
	p.MeanAccessHour = f(0)
	p.StdAccessHour = f(1)

	// raw z = 23, capped at 6 -> 6/9 = 0.667
	risk, reason := timeDeviationSignal(&event.AccessEvent{Hour: 23}, p)
	assert.Equal(t, 0.667, risk)
	assert.Equal(t, "time_z=6", reason)
}

func TestTimeDeviationSignal_NoBaseline(t *testing.T) {
	p := knownProfile()
	p.MeanAccessHour = nil

	risk, reason := timeDeviationSignal(&event.AccessEvent{Hour: 3}, p)
	assert.Equal(t, 0.0, risk)
	assert.Equal(t, "no_time_baseline", reason)
}

func TestNewDeviceSignal(t *testing.T) {
	p := knownProfile()

	risk, reason := newDeviceSignal(&event.AccessEvent{DeviceFingerprint: "fp-1"}, p)
	assert.Equal(t, 0.0, risk)
	assert.Equal(t, "known_device", reason)

	risk, reason = newDeviceSignal(&event.AccessEvent{DeviceFingerprint: "fp-2"}, p)
	assert.Equal(t, 0.9, risk)
	assert.Equal(t, "new_device", reason)
}

func TestNewClientSignal(t *testing.T) {
	p := knownProfile()

	risk, _ := newClientSignal(&event.AccessEvent{ClientType: "cli"}, p)
	assert.Equal(t, 0.0, risk)

	risk, reason := newClientSignal(&event.AccessEvent{ClientType: "browser"}, p)
	assert.Equal(t, 0.6, risk)
	assert.Equal(t, "new_client", reason)
}

func TestNetworkSignal(t *testing.T) {
	p := knownProfile()

	risk, reason := networkSignal(&event.AccessEvent{Country: "IN", ASN: "AS_LOCAL"}, p)
	assert.Equal(t, 0.0, risk)
	assert.Equal(t, "known_network", reason)

	risk, reason = networkSignal(&event.AccessEvent{Country: "US", ASN: "AS_LOCAL"}, p)
	assert.Equal(t, 0.4, risk)
	assert.Equal(t, "new_country", reason)

	risk, reason = networkSignal(&event.AccessEvent{Country: "IN", ASN: "AS_GOOGLE"}, p)
	assert.Equal(t, 0.5, risk)
	assert.Equal(t, "new_asn", reason)

	risk, reason = networkSignal(&event.AccessEvent{Country: "US", ASN: "AS_GOOGLE"}, p)
	assert.InDelta(t, 0.9, risk, 1e-9)
	assert.Equal(t, "new_country,new_asn", reason)
}

func TestBurstSignal(t *testing.T) {
	p := knownProfile()

	risk, reason := burstSignal(10, p)
	assert.Equal(t, 0.0, risk)
	assert.Equal(t, "normal_frequency", reason)

	risk, reason = burstSignal(11, p)
	assert.Equal(t, 0.7, risk)
	assert.Equal(t, "burst_count=11", reason)

	p.BurstThreshold = nil
	risk, reason = burstSignal(100, p)
	assert.Equal(t, 0.0, risk)
	assert.Equal(t, "no_burst_baseline", reason)
}

func TestInterEventGapSignal(t *testing.T) {
	p := knownProfile() // avg gap 100s

	risk, reason := interEventGapSignal(&event.AccessEvent{TimeSinceLast: f(29)}, p)
	assert.Equal(t, 0.8, risk)
	assert.Equal(t, "rapid_gap=29", reason)

	risk, reason = interEventGapSignal(&event.AccessEvent{TimeSinceLast: f(50)}, p)
	assert.Equal(t, 0.4, risk)
	assert.Equal(t, "fast_gap=50", reason)

	risk, reason = interEventGapSignal(&event.AccessEvent{TimeSinceLast: f(70)}, p)
	assert.Equal(t, 0.0, risk)
	assert.Equal(t, "normal_gap", reason)
}

func TestInterEventGapSignal_NoBaseline(t *testing.T) {
	p := knownProfile()

	// First event ever: no previous timestamp
	risk, reason := interEventGapSignal(&event.AccessEvent{}, p)
	assert.Equal(t, 0.0, risk)
	assert.Equal(t, "no_gap_baseline", reason)

	p.AvgInterEventGap = nil
	risk, _ = interEventGapSignal(&event.AccessEvent{TimeSinceLast: f(1)}, p)
	assert.Equal(t, 0.0, risk)
}
