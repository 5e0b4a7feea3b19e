// Package postgres is the durable Offer Store, phase store and slot config
// store, backed by pgxpool.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/slots"
)

//go:embed schema.sql
var schema string

// Postgres SQLSTATE codes mapped to domain errors.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store implements pipeline.Repository, pipeline.PhaseStore and
// slots.ConfigStore.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates missing tables. It is safe to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensureSchema: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ─── Applicants ──────────────────────────────────────────────────────────────

func (s *Store) CreateApplicant(ctx context.Context, a *pipeline.Applicant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO applicants (id, name, email) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
		a.ID, a.Name, a.Email,
	)
	if err != nil {
		return fmt.Errorf("createApplicant: %w", err)
	}
	return nil
}

func (s *Store) GetApplicant(ctx context.Context, id string) (*pipeline.Applicant, error) {
	var a pipeline.Applicant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email FROM applicants WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pipeline.NotFoundf("applicant %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getApplicant: %w", err)
	}
	return &a, nil
}

// ─── Applications ────────────────────────────────────────────────────────────

func (s *Store) CreateApplication(ctx context.Context, app *pipeline.Application) error {
	doc, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("createApplication marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO applications (id, applicant_id, team, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		app.ID, app.ApplicantID, app.Team, doc, app.CreatedAt, app.UpdatedAt,
	)
	switch pgCode(err) {
	case "":
	case uniqueViolation:
		return pipeline.Conflictf("applicant already applied to %s", app.Team)
	case foreignKeyViolation:
		return pipeline.NotFoundf("applicant %s", app.ApplicantID)
	}
	if err != nil {
		return fmt.Errorf("createApplication: %w", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*pipeline.Application, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM applications WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pipeline.NotFoundf("application %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getApplication: %w", err)
	}
	return decodeApplication(doc)
}

func (s *Store) ListApplications(ctx context.Context, team string) ([]*pipeline.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM applications WHERE team = $1 ORDER BY created_at`, team)
	if err != nil {
		return nil, fmt.Errorf("listApplications query: %w", err)
	}
	defer rows.Close()

	apps := make([]*pipeline.Application, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("listApplications scan: %w", err)
		}
		app, err := decodeApplication(doc)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateApplication locks the row, applies mutate and writes the document
// back in one transaction. A mutate error rolls back and is returned as is.
func (s *Store) UpdateApplication(ctx context.Context, id string, mutate func(*pipeline.Application) error) (*pipeline.Application, error) {
	var out *pipeline.Application
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var doc []byte
		err := tx.QueryRow(ctx, `SELECT doc FROM applications WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.NotFoundf("application %s", id)
		}
		if err != nil {
			return fmt.Errorf("updateApplication lock: %w", err)
		}

		app, err := decodeApplication(doc)
		if err != nil {
			return err
		}
		if err := mutate(app); err != nil {
			return err
		}

		next, err := json.Marshal(app)
		if err != nil {
			return fmt.Errorf("updateApplication marshal: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE applications SET doc = $2, updated_at = $3 WHERE id = $1`,
			id, next, app.UpdatedAt,
		); err != nil {
			return fmt.Errorf("updateApplication write: %w", err)
		}
		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// offersOf expands the interview offers of each application row. A null
// offers list yields no rows.
const offersOf = `
	FROM applications a,
	     jsonb_array_elements(
	         CASE WHEN jsonb_typeof(a.doc->'interviewOffers') = 'array'
	              THEN a.doc->'interviewOffers' ELSE '[]'::jsonb END
	     ) o`

func (s *Store) ListBookings(ctx context.Context, team, system string, from, to time.Time) ([]pipeline.Booking, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, o->>'system',
		        (o->>'scheduledAt')::timestamptz, (o->>'scheduledEndAt')::timestamptz`+offersOf+`
		 WHERE a.team = $1
		   AND o->>'system' = $2
		   AND o->>'status' IN ('SCHEDULING', 'SCHEDULED')
		   AND (o->>'scheduledAt')::timestamptz < $4
		   AND (o->>'scheduledEndAt')::timestamptz > $3`,
		team, system, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("listBookings query: %w", err)
	}
	return collectBookings(rows, "listBookings")
}

func (s *Store) ListStaleClaims(ctx context.Context, before time.Time) ([]pipeline.Booking, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, o->>'system',
		        COALESCE((o->>'scheduledAt')::timestamptz, 'epoch'),
		        COALESCE((o->>'scheduledEndAt')::timestamptz, 'epoch')`+offersOf+`
		 WHERE o->>'status' = 'SCHEDULING'
		   AND (o->>'claimedAt')::timestamptz < $1`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("listStaleClaims query: %w", err)
	}
	return collectBookings(rows, "listStaleClaims")
}

func collectBookings(rows pgx.Rows, op string) ([]pipeline.Booking, error) {
	defer rows.Close()
	var out []pipeline.Booking
	for rows.Next() {
		var b pipeline.Booking
		if err := rows.Scan(&b.ApplicationID, &b.System, &b.Start, &b.End); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}

func decodeApplication(doc []byte) (*pipeline.Application, error) {
	var app pipeline.Application
	if err := json.Unmarshal(doc, &app); err != nil {
		return nil, fmt.Errorf("decode application: %w", err)
	}
	return &app, nil
}

// ─── Phase ───────────────────────────────────────────────────────────────────

func (s *Store) GetPhase(ctx context.Context) (pipeline.Phase, error) {
	var raw string
	if err := s.pool.QueryRow(ctx, `SELECT phase FROM recruiting_phase WHERE id`).Scan(&raw); err != nil {
		return "", fmt.Errorf("getPhase: %w", err)
	}
	return pipeline.Phase(raw), nil
}

func (s *Store) SetPhase(ctx context.Context, p pipeline.Phase) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recruiting_phase (id, phase, updated_at) VALUES (TRUE, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET phase = EXCLUDED.phase, updated_at = NOW()`,
		string(p),
	)
	if err != nil {
		return fmt.Errorf("setPhase: %w", err)
	}
	return nil
}

// ─── Slot configs ────────────────────────────────────────────────────────────

func (s *Store) GetSlotConfig(ctx context.Context, team, system string) (*slots.Config, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT config FROM interview_slot_configs WHERE team = $1 AND system = $2`,
		team, system,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pipeline.NotFoundf("slot config %s/%s", team, system)
	}
	if err != nil {
		return nil, fmt.Errorf("getSlotConfig: %w", err)
	}
	var c slots.Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode slot config %s/%s: %w", team, system, err)
	}
	return &c, nil
}

func (s *Store) UpsertSlotConfig(ctx context.Context, c slots.Config) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("upsertSlotConfig marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO interview_slot_configs (team, system, config, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (team, system) DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()`,
		c.Team, c.System, raw,
	)
	if err != nil {
		return fmt.Errorf("upsertSlotConfig: %w", err)
	}
	return nil
}

func (s *Store) ListSlotConfigs(ctx context.Context) ([]slots.Config, error) {
	rows, err := s.pool.Query(ctx, `SELECT config FROM interview_slot_configs ORDER BY team, system`)
	if err != nil {
		return nil, fmt.Errorf("listSlotConfigs query: %w", err)
	}
	defer rows.Close()

	out := make([]slots.Config, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("listSlotConfigs scan: %w", err)
		}
		var c slots.Config
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode slot config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
