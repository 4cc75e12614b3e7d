package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/accessguard/internal/baseline"
	"github.com/mbd888/accessguard/internal/event"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testRecord() *Record {
	return &Record{
		SourceIP:          "192.168.1.10",
		Country:           "IN",
		ASN:               "AS_LOCAL",
		ClientType:        "cli",
		AccessType:        "login",
		DeviceFingerprint: "fp-1",
		FingerprintMeta:   []byte(`{"os":"Linux"}`),
	}
}

func TestIngest_ValidationErrors(t *testing.T) {
	e := testEngine()

	_, err := e.Ingest(context.Background(), &Record{})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t,
		[]string{"client_type", "access_type", "device_fingerprint", "fingerprint_data"},
		verr.MissingFields)
}

func TestIngest_LearningPhase(t *testing.T) {
	e := testEngine().WithClock(fixedClock(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		res, err := e.Ingest(ctx, testRecord())
		require.NoError(t, err)
		assert.Equal(t, int64(i), res.EventID)
		assert.Equal(t, event.VerdictLearning, res.Verdict, "event %d", i)
		assert.Equal(t, event.AttackBaselineBuilding, res.AttackType)
		assert.Equal(t, []string{"learning_phase"}, res.Reasons)
		assert.Equal(t, 0.0, res.RiskScore)
		assert.Nil(t, res.Explainability)
	}
}

func TestIngest_ScoringStartsAtThreshold(t *testing.T) {
	e := testEngine().WithClock(fixedClock(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := e.Ingest(ctx, testRecord())
		require.NoError(t, err)
	}

	// The fifth event is the first one scored. Everything about it matches
	// the learned baseline, so it comes back clean.
	res, err := e.Ingest(ctx, testRecord())
	require.NoError(t, err)
	assert.Equal(t, event.VerdictNormal, res.Verdict)
	assert.Equal(t, event.AttackNormalBehavior, res.AttackType)
	assert.Equal(t, 0.0, res.RiskScore)
	require.NotNil(t, res.Explainability)
	assert.Len(t, res.Explainability.Signals, 6)
}

func TestIngest_NewDeviceAfterLearning(t *testing.T) {
	e := testEngine().WithClock(fixedClock(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.Ingest(ctx, testRecord())
		require.NoError(t, err)
	}

	rec := testRecord()
	rec.DeviceFingerprint = "fp-stolen"
	res, err := e.Ingest(ctx, rec)
	require.NoError(t, err)

	// New device (0.9*0.35) plus burst (6 events in the trailing hour against
	// a learned threshold of 5, 0.7*0.30).
	assert.InDelta(t, 0.525, res.RiskScore, 1e-9)
	assert.Equal(t, event.VerdictSuspicious, res.Verdict)
	assert.Equal(t, event.AttackDeviceAnomaly, res.AttackType)
	assert.Contains(t, res.Reasons, "new_device")
}

func TestIngest_LearnedBaselineContainsObservations(t *testing.T) {
	baselines := baseline.NewMemoryStore()
	e := NewEngine(baselines, event.NewMemoryStore()).
		WithClock(fixedClock(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := e.Ingest(ctx, testRecord())
		require.NoError(t, err)
	}

	p, err := baselines.Get(ctx)
	require.NoError(t, err)
	assert.True(t, p.KnownDevices.Has("fp-1"))
	assert.True(t, p.KnownClients.Has("cli"))
	assert.True(t, p.KnownCountries.Has("IN"))
	assert.True(t, p.KnownASNs.Has("AS_LOCAL"))
	require.NotNil(t, p.BurstThreshold)
	assert.Equal(t, 5.0, *p.BurstThreshold)
}

func TestIngest_IdentityRiskAccumulates(t *testing.T) {
	baselines := baseline.NewMemoryStore()
	e := NewEngine(baselines, event.NewMemoryStore()).
		WithClock(fixedClock(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.Ingest(ctx, testRecord())
		require.NoError(t, err)
	}

	rec := testRecord()
	rec.DeviceFingerprint = "fp-stolen"
	res, err := e.Ingest(ctx, rec)
	require.NoError(t, err)
	require.Greater(t, res.RiskScore, 0.0)

	p, err := baselines.Get(ctx)
	require.NoError(t, err)
	assert.InDelta(t, res.RiskScore, p.IdentityRisk, 1e-9)
	require.NotNil(t, p.IdentityLastUpdated)
}

func TestIngest_PriorIdentityRiskEscalatesVerdict(t *testing.T) {
	e := testEngine().WithClock(fixedClock(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.Ingest(ctx, testRecord())
		require.NoError(t, err)
	}

	// First anomaly: SUSPICIOUS on its own score.
	rec := testRecord()
	rec.DeviceFingerprint = "fp-a"
	first, err := e.Ingest(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, event.VerdictSuspicious, first.Verdict)

	// Second anomaly: same instantaneous score, but the accumulated identity
	// risk now bleeds in (0.525 + 0.525*0.5 > 0.60).
	rec = testRecord()
	rec.DeviceFingerprint = "fp-b"
	second, err := e.Ingest(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, event.VerdictHighRisk, second.Verdict)
}

func TestIngest_TimestampDefaultsToClock(t *testing.T) {
	events := event.NewMemoryStore()
	now := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	e := NewEngine(baseline.NewMemoryStore(), events).WithClock(fixedClock(now))

	_, err := e.Ingest(context.Background(), testRecord())
	require.NoError(t, err)

	last, err := events.LastEventTime(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, now, *last)
}

func TestIngest_DayUsesMondayZero(t *testing.T) {
	// 2025-06-02 is a Monday.
	mon := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, int(mon.Weekday()+6)%7)

	// 2025-06-08 is a Sunday.
	sun := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 6, int(sun.Weekday()+6)%7)
}

func TestLookupDecision(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	res, err := e.Ingest(ctx, testRecord())
	require.NoError(t, err)

	d, err := e.LookupDecision(ctx, res.EventID)
	require.NoError(t, err)
	assert.Equal(t, res.EventID, d.EventID)
	assert.Equal(t, res.Verdict, d.Verdict)

	_, err = e.LookupDecision(ctx, 9999)
	assert.ErrorIs(t, err, ErrDecisionMissing)
}

func TestIngest_ConcurrentEventsAllDecided(t *testing.T) {
	events := event.NewMemoryStore()
	e := NewEngine(baseline.NewMemoryStore(), events)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Ingest(ctx, testRecord())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := events.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)

	// Every event has a decision; none were lost to interleaving.
	for id := int64(1); id <= n; id++ {
		d, err := events.GetDecisionByEvent(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, d, "event %d has no decision", id)
	}
}
