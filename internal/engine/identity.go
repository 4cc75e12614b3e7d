package engine

import (
	"math"
	"time"

	"github.com/mbd888/accessguard/internal/baseline"
)

// accumulateIdentityRisk folds one event's score into the profile's rolling
// identity risk. Prior risk decays continuously with wall-clock time since
// the last update, so suspicion fades when the actor is quiet regardless of
// event volume. Runs on every event, learning phase included.
func (e *Engine) accumulateIdentityRisk(p *baseline.Profile, eventScore float64, now time.Time) {
	decayed := p.IdentityRisk
	if p.IdentityLastUpdated != nil {
		hours := now.Sub(*p.IdentityLastUpdated).Hours()
		decayed *= math.Pow(e.params.IdentityDecay, hours)
	}

	p.IdentityRisk = math.Min(decayed+eventScore, 1.0)
	t := now
	p.IdentityLastUpdated = &t
}
