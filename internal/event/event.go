// Package event defines the append-only access event and risk decision
// records and the store that persists them.
//
// Every ingested request produces exactly one AccessEvent and, once the
// pipeline completes, exactly one RiskDecision. Neither is ever mutated or
// deleted; an event whose decision write failed stays behind as "pending".
package event

import (
	"context"
	"strings"
	"time"
)

// Verdict is the final categorical risk label for an event.
type Verdict string

const (
	VerdictLearning   Verdict = "LEARNING"
	VerdictNormal     Verdict = "NORMAL"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictHighRisk   Verdict = "HIGH_RISK"
)

// AttackType is the coarse label derived from which signals fired.
type AttackType string

const (
	AttackBaselineBuilding AttackType = "BASELINE_BUILDING"
	AttackMultiVector      AttackType = "MULTI_VECTOR_ATTACK"
	AttackAutomation       AttackType = "AUTOMATION"
	AttackDeviceCompromise AttackType = "DEVICE_COMPROMISE"
	AttackDeviceAnomaly    AttackType = "DEVICE_ANOMALY"
	AttackNetworkAnomaly   AttackType = "NETWORK_ANOMALY"
	AttackTimeAnomaly      AttackType = "TIME_ANOMALY"
	AttackBurstAbuse       AttackType = "BURST_ABUSE"
	AttackNormalBehavior   AttackType = "NORMAL_BEHAVIOR"
)

// AccessEvent is one observed access, enriched before ingestion.
type AccessEvent struct {
	ID                int64     `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Hour              int       `json:"hour"` // 0-23
	Day               int       `json:"day"`  // 0-6, Monday = 0
	SourceIP          string    `json:"sourceIp"`
	Country           string    `json:"country"`
	ASN               string    `json:"asn"`
	ClientType        string    `json:"clientType"`
	DeviceFingerprint string    `json:"deviceFingerprint"`
	FingerprintMeta   []byte    `json:"-"` // opaque JSON blob
	AccessType        string    `json:"accessType"`
	TimeSinceLast     *float64  `json:"timeSinceLast,omitempty"` // seconds
}

// SignalDetail is one signal's contribution to a score, with display rounding
// already applied.
type SignalDetail struct {
	Name         string  `json:"name"`
	RawRisk      float64 `json:"raw_risk"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Reason       string  `json:"reason"`
}

// Explainability captures how a score was assembled.
type Explainability struct {
	Signals           []SignalDetail `json:"signals"`
	SynergyMultiplier float64        `json:"synergy_multiplier"`
	FinalScore        float64        `json:"final_score"`
}

// RiskDecision is the verdict produced for a single event.
type RiskDecision struct {
	EventID        int64           `json:"event_id"`
	RiskScore      float64         `json:"risk_score"`
	Verdict        Verdict         `json:"verdict"`
	AttackType     AttackType      `json:"attack_type"`
	Reasons        []string        `json:"reasons"`
	Explainability *Explainability `json:"explainability,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// JoinReasons encodes a reason list for storage. The empty list encodes to
// the empty string.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, ",")
}

// SplitReasons is the exact inverse of JoinReasons.
func SplitReasons(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Store persists events and decisions.
type Store interface {
	// InsertEvent appends an event and returns its assigned ID.
	InsertEvent(ctx context.Context, ev *AccessEvent) (int64, error)
	// GetEvent returns an event by ID, or nil when no such event exists.
	GetEvent(ctx context.Context, id int64) (*AccessEvent, error)
	// CountEvents returns the total number of events ever ingested.
	CountEvents(ctx context.Context) (int64, error)
	// CountEventsSince counts events with timestamp >= since.
	CountEventsSince(ctx context.Context, since time.Time) (int64, error)
	// LastEventTime returns the timestamp of the most recent event, or nil
	// when no events exist.
	LastEventTime(ctx context.Context) (*time.Time, error)

	// InsertDecision appends the decision for an event.
	InsertDecision(ctx context.Context, d *RiskDecision) error
	// GetDecisionByEvent returns the decision for an event, or nil when the
	// event is still pending.
	GetDecisionByEvent(ctx context.Context, eventID int64) (*RiskDecision, error)
	// ListRecentDecisions returns the newest decisions first, up to limit.
	ListRecentDecisions(ctx context.Context, limit int) ([]*RiskDecision, error)
	// CountDecisionsByVerdict counts decisions carrying the given verdict.
	CountDecisionsByVerdict(ctx context.Context, v Verdict) (int64, error)
}
