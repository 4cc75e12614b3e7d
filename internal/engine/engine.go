// Package engine implements the adaptive access-risk pipeline: learn a
// behavioral baseline from early events, then score every subsequent event
// against it through six weighted signals, classify the anomaly, and fold the
// score into a time-decayed identity risk register.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mbd888/accessguard/internal/baseline"
	"github.com/mbd888/accessguard/internal/event"
	"github.com/mbd888/accessguard/internal/metrics"
	"github.com/mbd888/accessguard/internal/traces"
)

// Record is an ingest request after enrichment. ClientType, AccessType,
// DeviceFingerprint and FingerprintMeta are required; the rest is attached by
// the HTTP layer's collaborators before the record reaches the engine.
type Record struct {
	Timestamp         time.Time
	SourceIP          string
	Country           string
	ASN               string
	ClientType        string
	AccessType        string
	DeviceFingerprint string
	FingerprintMeta   []byte // JSON blob
}

// Result is the outcome of ingesting one event.
type Result struct {
	EventID        int64                 `json:"event_id"`
	Verdict        event.Verdict         `json:"verdict"`
	RiskScore      float64               `json:"risk_score"`
	AttackType     event.AttackType      `json:"attack_type"`
	Reasons        []string              `json:"reasons"`
	Explainability *event.Explainability `json:"explainability,omitempty"`
}

// Engine owns the evaluation pipeline. All baseline reads and writes for one
// event happen under a single mutex: the profile is a shared singleton and
// concurrent read-modify-write cycles would silently lose identity-risk and
// learning updates.
type Engine struct {
	baselines baseline.Store
	events    event.Store
	learner   *baseline.Learner
	params    Params
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewEngine creates an engine with default parameters.
func NewEngine(baselines baseline.Store, events event.Store) *Engine {
	params := DefaultParams()
	return &Engine{
		baselines: baselines,
		events:    events,
		learner:   baseline.NewLearner(params.LearningThreshold),
		params:    params,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// WithParams overrides the default tuning.
func (e *Engine) WithParams(p Params) *Engine {
	e.params = p
	e.learner = baseline.NewLearner(p.LearningThreshold)
	return e
}

// WithLogger sets a custom logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithClock overrides the time source (for tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Params returns the engine's tuning.
func (e *Engine) Params() Params { return e.params }

// Ingest runs one event through the full pipeline: validate, persist the
// event, learn or score, classify, decide, accumulate identity risk, persist
// the decision. Ingestion is not idempotent — re-submitting creates a new
// event.
func (e *Engine) Ingest(ctx context.Context, rec *Record) (*Result, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}

	ctx, span := traces.StartSpan(ctx, "engine.Ingest",
		traces.ClientType(rec.ClientType),
		traces.SourceIP(rec.SourceIP),
	)
	defer span.End()

	// One event at a time end to end. The baseline is a single shared row;
	// everything from the pre-insert gap lookup to the decision write must
	// see a consistent view of it and of the event history.
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = now
	}

	lastSeen, err := e.events.LastEventTime(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "last event lookup", Err: err}
	}
	var timeSinceLast *float64
	if lastSeen != nil {
		gap := ts.Sub(*lastSeen).Seconds()
		timeSinceLast = &gap
	}

	ev := &event.AccessEvent{
		Timestamp:         ts,
		Hour:              ts.Hour(),
		Day:               int(ts.Weekday()+6) % 7, // Monday = 0
		SourceIP:          rec.SourceIP,
		Country:           rec.Country,
		ASN:               rec.ASN,
		ClientType:        rec.ClientType,
		DeviceFingerprint: rec.DeviceFingerprint,
		FingerprintMeta:   rec.FingerprintMeta,
		AccessType:        rec.AccessType,
		TimeSinceLast:     timeSinceLast,
	}
	eventID, err := e.events.InsertEvent(ctx, ev)
	if err != nil {
		return nil, &PersistenceError{Op: "event insert", Err: err}
	}

	count, err := e.events.CountEvents(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "event count", Err: err}
	}

	profile, err := e.baselines.Get(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "baseline load", Err: err}
	}

	decision := &event.RiskDecision{
		EventID:   eventID,
		Timestamp: now,
	}

	if e.learner.Active(count) {
		decision.Verdict = event.VerdictLearning
		decision.AttackType = event.AttackBaselineBuilding
		decision.Reasons = []string{"learning_phase"}

		e.learner.Learn(profile, baseline.Observation{
			Hour:              ev.Hour,
			Country:           ev.Country,
			ASN:               ev.ASN,
			ClientType:        ev.ClientType,
			DeviceFingerprint: ev.DeviceFingerprint,
			TimeSinceLast:     ev.TimeSinceLast,
		}, count)
	} else {
		recentCount, err := e.events.CountEventsSince(ctx, now.Add(-time.Hour))
		if err != nil {
			return nil, &PersistenceError{Op: "burst window count", Err: err}
		}

		scored := e.score(ev, profile, recentCount)
		decision.RiskScore = scored.Final
		decision.Verdict = e.verdict(scored.Final, profile.IdentityRisk)
		decision.AttackType = classifyAttack(scored.Triggered)
		decision.Explainability = &event.Explainability{
			Signals:           scored.Details,
			SynergyMultiplier: scored.Synergy,
			FinalScore:        scored.Final,
		}
		for _, d := range scored.Details {
			// Normalize to the stored wire form: a reason carrying commas
			// (the network signal) splits into separate entries.
			decision.Reasons = append(decision.Reasons, event.SplitReasons(d.Reason)...)
		}
		for _, name := range scored.Triggered {
			metrics.SignalsTriggered.WithLabelValues(name).Inc()
		}
	}

	e.accumulateIdentityRisk(profile, decision.RiskScore, now)
	if err := e.baselines.Save(ctx, profile); err != nil {
		return nil, &PersistenceError{Op: "baseline save", Err: err}
	}

	if err := e.events.InsertDecision(ctx, decision); err != nil {
		// The event row stays behind without a decision; callers must treat
		// it as pending, never silently dropped.
		return nil, &PersistenceError{Op: "decision insert", Err: err}
	}

	metrics.EventsIngested.WithLabelValues(string(decision.Verdict)).Inc()
	metrics.RiskScores.Observe(decision.RiskScore)
	metrics.AttackClassifications.WithLabelValues(string(decision.AttackType)).Inc()
	metrics.IdentityRisk.Set(profile.IdentityRisk)

	span.SetAttributes(
		traces.EventID(eventID),
		traces.Verdict(string(decision.Verdict)),
		traces.AttackType(string(decision.AttackType)),
	)

	e.logger.Info("event evaluated",
		"event_id", eventID,
		"verdict", decision.Verdict,
		"risk_score", decision.RiskScore,
		"attack_type", decision.AttackType,
		"identity_risk", profile.IdentityRisk,
	)

	return &Result{
		EventID:        eventID,
		Verdict:        decision.Verdict,
		RiskScore:      decision.RiskScore,
		AttackType:     decision.AttackType,
		Reasons:        decision.Reasons,
		Explainability: decision.Explainability,
	}, nil
}

// LookupDecision fetches the decision for an event the caller just ingested.
// A missing decision at this point is an internal invariant violation.
func (e *Engine) LookupDecision(ctx context.Context, eventID int64) (*event.RiskDecision, error) {
	d, err := e.events.GetDecisionByEvent(ctx, eventID)
	if err != nil {
		return nil, &PersistenceError{Op: "decision lookup", Err: err}
	}
	if d == nil {
		return nil, ErrDecisionMissing
	}
	return d, nil
}

func validate(rec *Record) error {
	var missing []string
	if rec.ClientType == "" {
		missing = append(missing, "client_type")
	}
	if rec.AccessType == "" {
		missing = append(missing, "access_type")
	}
	if rec.DeviceFingerprint == "" {
		missing = append(missing, "device_fingerprint")
	}
	if len(rec.FingerprintMeta) == 0 {
		missing = append(missing, "fingerprint_data")
	}
	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}
	return nil
}
