package baseline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists the singleton profile in PostgreSQL. The known-value
// sets live as genuine sets in memory and are serialized to JSONB only here.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed profile store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the baseline_profile table and seeds the singleton row.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS baseline_profile (
			id                    SMALLINT PRIMARY KEY CHECK (id = 1),
			mean_access_hour      DOUBLE PRECISION,
			std_access_hour       DOUBLE PRECISION,
			known_countries       JSONB NOT NULL DEFAULT '[]',
			known_asns            JSONB NOT NULL DEFAULT '[]',
			known_clients         JSONB NOT NULL DEFAULT '[]',
			known_devices         JSONB NOT NULL DEFAULT '[]',
			burst_threshold       DOUBLE PRECISION,
			avg_inter_event_gap   DOUBLE PRECISION,
			identity_risk         DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (identity_risk >= 0 AND identity_risk <= 1),
			identity_last_updated TIMESTAMPTZ,
			last_updated          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create baseline_profile: %w", err)
	}

	seed := NewProfile()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO baseline_profile (id, mean_access_hour, std_access_hour, burst_threshold, last_updated)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO NOTHING
	`, *seed.MeanAccessHour, *seed.StdAccessHour, *seed.BurstThreshold)
	if err != nil {
		return fmt.Errorf("seed baseline_profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT mean_access_hour, std_access_hour,
		       known_countries, known_asns, known_clients, known_devices,
		       burst_threshold, avg_inter_event_gap,
		       identity_risk, identity_last_updated, last_updated
		FROM baseline_profile WHERE id = 1
	`)

	var (
		mean, std, burst, gap          sql.NullFloat64
		countries, asns, clients, devs []byte
		identityRisk                   float64
		identityUpdated                sql.NullTime
		lastUpdated                    time.Time
	)
	if err := row.Scan(&mean, &std, &countries, &asns, &clients, &devs,
		&burst, &gap, &identityRisk, &identityUpdated, &lastUpdated); err != nil {
		return nil, fmt.Errorf("load baseline profile: %w", err)
	}

	p := &Profile{
		MeanAccessHour:   nullFloat(mean),
		StdAccessHour:    nullFloat(std),
		BurstThreshold:   nullFloat(burst),
		AvgInterEventGap: nullFloat(gap),
		IdentityRisk:     identityRisk,
		LastUpdated:      lastUpdated,
	}
	if identityUpdated.Valid {
		t := identityUpdated.Time
		p.IdentityLastUpdated = &t
	}
	for _, col := range []struct {
		raw []byte
		dst *Set
	}{
		{countries, &p.KnownCountries},
		{asns, &p.KnownASNs},
		{clients, &p.KnownClients},
		{devs, &p.KnownDevices},
	} {
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode known set: %w", err)
		}
	}
	return p, nil
}

func (s *PostgresStore) Save(ctx context.Context, p *Profile) error {
	countries, err := json.Marshal(p.KnownCountries)
	if err != nil {
		return fmt.Errorf("encode known_countries: %w", err)
	}
	asns, err := json.Marshal(p.KnownASNs)
	if err != nil {
		return fmt.Errorf("encode known_asns: %w", err)
	}
	clients, err := json.Marshal(p.KnownClients)
	if err != nil {
		return fmt.Errorf("encode known_clients: %w", err)
	}
	devices, err := json.Marshal(p.KnownDevices)
	if err != nil {
		return fmt.Errorf("encode known_devices: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE baseline_profile SET
			mean_access_hour      = $1,
			std_access_hour       = $2,
			known_countries       = $3,
			known_asns            = $4,
			known_clients         = $5,
			known_devices         = $6,
			burst_threshold       = $7,
			avg_inter_event_gap   = $8,
			identity_risk         = $9,
			identity_last_updated = $10,
			last_updated          = $11
		WHERE id = 1
	`,
		floatArg(p.MeanAccessHour),
		floatArg(p.StdAccessHour),
		countries, asns, clients, devices,
		floatArg(p.BurstThreshold),
		floatArg(p.AvgInterEventGap),
		p.IdentityRisk,
		timeArg(p.IdentityLastUpdated),
		p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("save baseline profile: %w", err)
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatArg(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func timeArg(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
