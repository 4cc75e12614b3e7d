package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists events and decisions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the access_events and risk_decisions tables if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS access_events (
			id                 BIGSERIAL PRIMARY KEY,
			ts                 TIMESTAMPTZ NOT NULL,
			hour               SMALLINT NOT NULL CHECK (hour >= 0 AND hour <= 23),
			day                SMALLINT NOT NULL CHECK (day >= 0 AND day <= 6),
			source_ip          TEXT NOT NULL,
			country            TEXT NOT NULL,
			asn                TEXT NOT NULL,
			client_type        TEXT NOT NULL,
			device_fingerprint TEXT NOT NULL,
			fingerprint_meta   JSONB,
			access_type        TEXT NOT NULL,
			time_since_last    DOUBLE PRECISION
		);

		CREATE INDEX IF NOT EXISTS idx_access_events_ts ON access_events (ts DESC);

		CREATE TABLE IF NOT EXISTS risk_decisions (
			event_id       BIGINT PRIMARY KEY REFERENCES access_events (id),
			risk_score     DOUBLE PRECISION NOT NULL CHECK (risk_score >= 0 AND risk_score <= 1),
			verdict        VARCHAR(12) NOT NULL CHECK (verdict IN ('LEARNING', 'NORMAL', 'SUSPICIOUS', 'HIGH_RISK')),
			attack_type    VARCHAR(24) NOT NULL,
			reasons        TEXT NOT NULL DEFAULT '',
			explainability JSONB,
			ts             TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_risk_decisions_verdict ON risk_decisions (verdict);
	`)
	return err
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev *AccessEvent) (int64, error) {
	var meta interface{}
	if len(ev.FingerprintMeta) > 0 {
		meta = ev.FingerprintMeta
	}
	var gap interface{}
	if ev.TimeSinceLast != nil {
		gap = *ev.TimeSinceLast
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO access_events (
			ts, hour, day, source_ip, country, asn,
			client_type, device_fingerprint, fingerprint_meta,
			access_type, time_since_last
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		ev.Timestamp, ev.Hour, ev.Day, ev.SourceIP, ev.Country, ev.ASN,
		ev.ClientType, ev.DeviceFingerprint, meta, ev.AccessType, gap,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert access event: %w", err)
	}
	ev.ID = id
	return id, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id int64) (*AccessEvent, error) {
	var (
		ev   AccessEvent
		meta []byte
		gap  sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ts, hour, day, source_ip, country, asn,
		       client_type, device_fingerprint, fingerprint_meta,
		       access_type, time_since_last
		FROM access_events WHERE id = $1
	`, id).Scan(&ev.ID, &ev.Timestamp, &ev.Hour, &ev.Day, &ev.SourceIP,
		&ev.Country, &ev.ASN, &ev.ClientType, &ev.DeviceFingerprint,
		&meta, &ev.AccessType, &gap)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	ev.FingerprintMeta = meta
	if gap.Valid {
		g := gap.Float64
		ev.TimeSinceLast = &g
	}
	return &ev, nil
}

func (s *PostgresStore) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountEventsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_events WHERE ts >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events since: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) LastEventTime(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT ts FROM access_events ORDER BY id DESC LIMIT 1`).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last event time: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) InsertDecision(ctx context.Context, d *RiskDecision) error {
	var explain interface{}
	if d.Explainability != nil {
		raw, err := json.Marshal(d.Explainability)
		if err != nil {
			return fmt.Errorf("encode explainability: %w", err)
		}
		explain = raw
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_decisions (event_id, risk_score, verdict, attack_type, reasons, explainability, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		d.EventID, d.RiskScore, string(d.Verdict), string(d.AttackType),
		JoinReasons(d.Reasons), explain, d.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert risk decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDecisionByEvent(ctx context.Context, eventID int64) (*RiskDecision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, risk_score, verdict, attack_type, reasons, explainability, ts
		FROM risk_decisions WHERE event_id = $1
	`, eventID)

	d, err := scanDecision(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListRecentDecisions(ctx context.Context, limit int) ([]*RiskDecision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, risk_score, verdict, attack_type, reasons, explainability, ts
		FROM risk_decisions
		ORDER BY event_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*RiskDecision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountDecisionsByVerdict(ctx context.Context, v Verdict) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM risk_decisions WHERE verdict = $1`, string(v)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

func scanDecision(scan func(...interface{}) error) (*RiskDecision, error) {
	var (
		d       RiskDecision
		reasons string
		explain []byte
	)
	if err := scan(&d.EventID, &d.RiskScore, &d.Verdict, &d.AttackType,
		&reasons, &explain, &d.Timestamp); err != nil {
		return nil, err
	}
	d.Reasons = SplitReasons(reasons)
	if len(explain) > 0 {
		var ex Explainability
		if err := json.Unmarshal(explain, &ex); err != nil {
			return nil, fmt.Errorf("decode explainability: %w", err)
		}
		d.Explainability = &ex
	}
	return &d, nil
}
