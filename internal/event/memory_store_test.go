package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(ts time.Time) *AccessEvent {
	return &AccessEvent{
		Timestamp:         ts,
		Hour:              ts.Hour(),
		Day:               int(ts.Weekday()+6) % 7,
		SourceIP:          "192.168.1.10",
		Country:           "IN",
		ASN:               "AS_LOCAL",
		ClientType:        "cli",
		DeviceFingerprint: "fp-1",
		AccessType:        "login",
	}
}

func TestMemoryStore_InsertAssignsSequentialIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for want := int64(1); want <= 3; want++ {
		id, err := s.InsertEvent(ctx, sampleEvent(now))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	n, err := s.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMemoryStore_GetEvent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ts := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	id, err := s.InsertEvent(ctx, sampleEvent(ts))
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "fp-1", got.DeviceFingerprint)

	missing, err := s.GetEvent(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_CountEventsSince(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{-2 * time.Hour, -30 * time.Minute, 0} {
		_, err := s.InsertEvent(ctx, sampleEvent(base.Add(offset)))
		require.NoError(t, err)
	}

	n, err := s.CountEventsSince(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryStore_LastEventTime(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	last, err := s.LastEventTime(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	ts := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	_, err = s.InsertEvent(ctx, sampleEvent(ts))
	require.NoError(t, err)

	last, err = s.LastEventTime(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, ts, *last)
}

func TestMemoryStore_DecisionRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.InsertEvent(ctx, sampleEvent(time.Now().UTC()))
	require.NoError(t, err)

	d := &RiskDecision{
		EventID:    id,
		RiskScore:  0.525,
		Verdict:    VerdictSuspicious,
		AttackType: AttackDeviceAnomaly,
		Reasons:    []string{"new_device", "burst_count=6"},
		Explainability: &Explainability{
			Signals:           []SignalDetail{{Name: "device", RawRisk: 0.9, Weight: 0.35, Contribution: 0.315, Reason: "new_device"}},
			SynergyMultiplier: 1.0,
			FinalScore:        0.525,
		},
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, s.InsertDecision(ctx, d))

	got, err := s.GetDecisionByEvent(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, d.Verdict, got.Verdict)
	assert.Equal(t, d.Reasons, got.Reasons)
	assert.Equal(t, 0.525, got.Explainability.FinalScore)
}

func TestMemoryStore_PendingEventHasNilDecision(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.InsertEvent(ctx, sampleEvent(time.Now().UTC()))
	require.NoError(t, err)

	got, err := s.GetDecisionByEvent(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_ListRecentDecisions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := s.InsertEvent(ctx, sampleEvent(time.Now().UTC()))
		require.NoError(t, err)
		require.NoError(t, s.InsertDecision(ctx, &RiskDecision{
			EventID: id, Verdict: VerdictNormal, Timestamp: time.Now().UTC(),
		}))
	}

	out, err := s.ListRecentDecisions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	// Newest first
	assert.Equal(t, int64(5), out[0].EventID)
	assert.Equal(t, int64(3), out[2].EventID)
}

func TestMemoryStore_CountDecisionsByVerdict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	verdicts := []Verdict{VerdictNormal, VerdictSuspicious, VerdictSuspicious, VerdictHighRisk}
	for _, v := range verdicts {
		id, err := s.InsertEvent(ctx, sampleEvent(time.Now().UTC()))
		require.NoError(t, err)
		require.NoError(t, s.InsertDecision(ctx, &RiskDecision{EventID: id, Verdict: v}))
	}

	n, err := s.CountDecisionsByVerdict(ctx, VerdictSuspicious)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.CountDecisionsByVerdict(ctx, VerdictLearning)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestReasons_RoundTrip(t *testing.T) {
	cases := [][]string{
		nil,
		{"learning_phase"},
		{"new_country", "new_asn", "new_device"},
	}
	for _, reasons := range cases {
		assert.Equal(t, reasons, SplitReasons(JoinReasons(reasons)))
	}
}
