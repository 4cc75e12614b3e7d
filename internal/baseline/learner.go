package baseline

import (
	"time"

	"github.com/mbd888/accessguard/internal/stats"
)

// DefaultLearningThreshold is the event count at which the baseline freezes.
const DefaultLearningThreshold = 5

// gapAlpha is the EMA smoothing factor for the inter-event gap. Intentionally
// heavier than the hour statistics so the gap average settles within the short
// learning window.
const gapAlpha = 0.2

// Observation is the slice of an access event the learner consumes.
type Observation struct {
	Hour              int
	Country           string
	ASN               string
	ClientType        string
	DeviceFingerprint string
	TimeSinceLast     *float64 // seconds, nil for the first event
}

// Learner folds events into the profile during the learning phase only.
// Once the historical event count reaches the threshold the learner is
// permanently inert and the baseline is frozen.
type Learner struct {
	threshold int64
	hourAlpha float64
}

// NewLearner creates a learner that freezes the baseline after threshold
// events. A non-positive threshold falls back to the default.
func NewLearner(threshold int64) *Learner {
	if threshold <= 0 {
		threshold = DefaultLearningThreshold
	}
	return &Learner{threshold: threshold, hourAlpha: stats.DefaultAlpha}
}

// Active reports whether the learning phase is still open given the total
// historical event count.
func (l *Learner) Active(eventCount int64) bool {
	return eventCount < l.threshold
}

// Learn updates the profile in place from one observation. eventCount is the
// total number of persisted events including the one being learned. Callers
// must hold the profile exclusively; Learn performs no locking of its own.
func (l *Learner) Learn(p *Profile, obs Observation, eventCount int64) {
	hour := float64(obs.Hour)

	// Std consumes the pre-update mean; order matters.
	newStd := stats.UpdateStd(p.StdAccessHour, p.MeanAccessHour, hour, l.hourAlpha)
	newMean := stats.UpdateEMA(p.MeanAccessHour, hour, l.hourAlpha)
	p.MeanAccessHour = &newMean
	p.StdAccessHour = &newStd

	if obs.TimeSinceLast != nil {
		gap := stats.UpdateEMA(p.AvgInterEventGap, *obs.TimeSinceLast, gapAlpha)
		p.AvgInterEventGap = &gap
	}

	p.KnownCountries.Add(obs.Country)
	p.KnownASNs.Add(obs.ASN)
	p.KnownClients.Add(obs.ClientType)
	p.KnownDevices.Add(obs.DeviceFingerprint)

	// Conservative burst tolerance: half the events seen so far, floor of 5.
	burst := float64(eventCount / 2)
	if burst < 5 {
		burst = 5
	}
	p.BurstThreshold = &burst

	p.LastUpdated = time.Now().UTC()
}
