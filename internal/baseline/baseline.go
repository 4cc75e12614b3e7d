// Package baseline maintains the single learned behavioral profile for a
// deployment: what hours it is normally accessed at, from which networks and
// devices, how frequently, and how much accumulated suspicion it carries.
//
// One profile exists per process lifetime. It is mutated by the learner during
// the initial learning phase and by the identity-risk accumulator on every
// event; all other consumers read consistent snapshots.
package baseline

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// Neutral defaults for a freshly initialized profile.
const (
	DefaultMeanHour       = 0.0
	DefaultStdHour        = 1.0
	DefaultBurstThreshold = 10.0
)

// Set is an append-only membership set of observed string values.
// It serializes as a JSON list at the persistence boundary.
type Set map[string]struct{}

// NewSet creates a set from the given values.
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Add inserts a value. Duplicate adds are no-ops.
func (s Set) Add(v string) {
	s[v] = struct{}{}
}

// Values returns the members sorted for stable serialization.
func (s Set) Values() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON decodes a JSON array into the set.
func (s *Set) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewSet(values...)
	return nil
}

// Profile is the learned behavioral baseline. Pointer fields are nullable:
// nil means the statistic has never been observed.
type Profile struct {
	MeanAccessHour      *float64
	StdAccessHour       *float64
	KnownCountries      Set
	KnownASNs           Set
	KnownClients        Set
	KnownDevices        Set
	BurstThreshold      *float64
	AvgInterEventGap    *float64 // seconds
	IdentityRisk        float64
	IdentityLastUpdated *time.Time
	LastUpdated         time.Time
}

// NewProfile returns a profile with neutral defaults, matching the row seeded
// at first startup.
func NewProfile() *Profile {
	mean := DefaultMeanHour
	std := DefaultStdHour
	burst := DefaultBurstThreshold
	return &Profile{
		MeanAccessHour: &mean,
		StdAccessHour:  &std,
		KnownCountries: NewSet(),
		KnownASNs:      NewSet(),
		KnownClients:   NewSet(),
		KnownDevices:   NewSet(),
		BurstThreshold: &burst,
		LastUpdated:    time.Now().UTC(),
	}
}

// Clone deep-copies the profile so callers can hold a consistent snapshot
// while the original keeps mutating.
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.MeanAccessHour = cloneFloat(p.MeanAccessHour)
	cp.StdAccessHour = cloneFloat(p.StdAccessHour)
	cp.BurstThreshold = cloneFloat(p.BurstThreshold)
	cp.AvgInterEventGap = cloneFloat(p.AvgInterEventGap)
	if p.IdentityLastUpdated != nil {
		t := *p.IdentityLastUpdated
		cp.IdentityLastUpdated = &t
	}
	cp.KnownCountries = p.KnownCountries.Clone()
	cp.KnownASNs = p.KnownASNs.Clone()
	cp.KnownClients = p.KnownClients.Clone()
	cp.KnownDevices = p.KnownDevices.Clone()
	return &cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// Store persists the singleton profile.
type Store interface {
	// Get returns a snapshot of the profile, seeding defaults on first use.
	Get(ctx context.Context) (*Profile, error)
	// Save replaces the stored profile.
	Save(ctx context.Context, p *Profile) error
}
