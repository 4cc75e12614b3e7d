package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/accessguard/internal/testutil"
)

func pgStore(t *testing.T) (*PostgresStore, func()) {
	t.Helper()
	db, cleanup := testutil.PGTest(t)
	s := NewPostgresStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s, cleanup
}

func TestPostgresStore_MigrateSeedsDefaults(t *testing.T) {
	s, cleanup := pgStore(t)
	defer cleanup()
	ctx := context.Background()

	// Migrate a second time to confirm the seed is conflict-safe.
	require.NoError(t, s.Migrate(ctx))

	p, err := s.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, p.MeanAccessHour)
	assert.Equal(t, DefaultMeanHour, *p.MeanAccessHour)
	require.NotNil(t, p.StdAccessHour)
	assert.Equal(t, DefaultStdHour, *p.StdAccessHour)
	require.NotNil(t, p.BurstThreshold)
	assert.Equal(t, DefaultBurstThreshold, *p.BurstThreshold)
	assert.Nil(t, p.AvgInterEventGap)
	assert.Empty(t, p.KnownDevices)
	assert.Equal(t, 0.0, p.IdentityRisk)
	assert.Nil(t, p.IdentityLastUpdated)
}

func TestPostgresStore_SaveRoundTrip(t *testing.T) {
	s, cleanup := pgStore(t)
	defer cleanup()
	ctx := context.Background()

	mean, std, burst, gap := 14.2, 2.1, 5.0, 120.5
	stamped := time.Now().UTC().Truncate(time.Microsecond)

	p := &Profile{
		MeanAccessHour:      &mean,
		StdAccessHour:       &std,
		KnownCountries:      NewSet("IN", "US"),
		KnownASNs:           NewSet("AS_LOCAL"),
		KnownClients:        NewSet("cli", "sdk"),
		KnownDevices:        NewSet("fp-1"),
		BurstThreshold:      &burst,
		AvgInterEventGap:    &gap,
		IdentityRisk:        0.37,
		IdentityLastUpdated: &stamped,
		LastUpdated:         stamped,
	}
	require.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.MeanAccessHour)
	assert.Equal(t, mean, *got.MeanAccessHour)
	require.NotNil(t, got.AvgInterEventGap)
	assert.Equal(t, gap, *got.AvgInterEventGap)
	assert.True(t, got.KnownCountries.Has("US"))
	assert.True(t, got.KnownClients.Has("sdk"))
	assert.True(t, got.KnownDevices.Has("fp-1"))
	assert.Equal(t, 0.37, got.IdentityRisk)
	require.NotNil(t, got.IdentityLastUpdated)
	assert.True(t, stamped.Equal(*got.IdentityLastUpdated))
}

func TestPostgresStore_SaveNullableFields(t *testing.T) {
	s, cleanup := pgStore(t)
	defer cleanup()
	ctx := context.Background()

	p := &Profile{
		KnownCountries: NewSet(),
		KnownASNs:      NewSet(),
		KnownClients:   NewSet(),
		KnownDevices:   NewSet(),
		LastUpdated:    time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.MeanAccessHour)
	assert.Nil(t, got.StdAccessHour)
	assert.Nil(t, got.BurstThreshold)
	assert.Nil(t, got.AvgInterEventGap)
	assert.Nil(t, got.IdentityLastUpdated)
}
