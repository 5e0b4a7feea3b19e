// Package memstore is an in-memory Offer Store, phase store and slot config
// store. It backs tests and CLI dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/slots"
)

// Store keeps deep copies so callers never alias stored state.
type Store struct {
	mu         sync.Mutex
	applicants map[string]pipeline.Applicant
	apps       map[string]*pipeline.Application
	configs    map[[2]string]slots.Config
	phase      pipeline.Phase
}

// New returns an empty store in phase OPEN.
func New() *Store {
	return &Store{
		applicants: make(map[string]pipeline.Applicant),
		apps:       make(map[string]*pipeline.Application),
		configs:    make(map[[2]string]slots.Config),
		phase:      pipeline.PhaseOpen,
	}
}

// ─── Applicants ──────────────────────────────────────────────────────────────

func (s *Store) CreateApplicant(_ context.Context, a *pipeline.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applicants[a.ID] = *a
	return nil
}

func (s *Store) GetApplicant(_ context.Context, id string) (*pipeline.Applicant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.applicants[id]
	if !ok {
		return nil, pipeline.NotFoundf("applicant %s", id)
	}
	return &a, nil
}

// ─── Applications ────────────────────────────────────────────────────────────

func (s *Store) CreateApplication(_ context.Context, app *pipeline.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.ApplicantID == app.ApplicantID && a.Team == app.Team {
			return pipeline.Conflictf("applicant already applied to %s", app.Team)
		}
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *Store) GetApplication(_ context.Context, id string) (*pipeline.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, pipeline.NotFoundf("application %s", id)
	}
	return a.Clone(), nil
}

func (s *Store) ListApplications(_ context.Context, team string) ([]*pipeline.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*pipeline.Application, 0)
	for _, a := range s.apps {
		if a.Team == team {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateApplication(_ context.Context, id string, mutate func(*pipeline.Application) error) (*pipeline.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.apps[id]
	if !ok {
		return nil, pipeline.NotFoundf("application %s", id)
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.apps[id] = next
	return next.Clone(), nil
}

func (s *Store) ListBookings(_ context.Context, team, system string, from, to time.Time) ([]pipeline.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pipeline.Booking
	for _, a := range s.apps {
		if a.Team != team {
			continue
		}
		for _, o := range a.InterviewOffers {
			if o.System != system || o.ScheduledAt == nil || o.ScheduledEndAt == nil {
				continue
			}
			if o.Status != pipeline.OfferScheduling && o.Status != pipeline.OfferScheduled {
				continue
			}
			if o.ScheduledAt.Before(to) && from.Before(*o.ScheduledEndAt) {
				out = append(out, pipeline.Booking{ApplicationID: a.ID, System: o.System, Start: *o.ScheduledAt, End: *o.ScheduledEndAt})
			}
		}
	}
	return out, nil
}

func (s *Store) ListStaleClaims(_ context.Context, before time.Time) ([]pipeline.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pipeline.Booking
	for _, a := range s.apps {
		for _, o := range a.InterviewOffers {
			if o.Status == pipeline.OfferScheduling && o.ClaimedAt != nil && o.ClaimedAt.Before(before) {
				b := pipeline.Booking{ApplicationID: a.ID, System: o.System}
				if o.ScheduledAt != nil {
					b.Start = *o.ScheduledAt
				}
				if o.ScheduledEndAt != nil {
					b.End = *o.ScheduledEndAt
				}
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// ─── Phase ───────────────────────────────────────────────────────────────────

func (s *Store) GetPhase(context.Context) (pipeline.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, nil
}

func (s *Store) SetPhase(_ context.Context, p pipeline.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	return nil
}

// ─── Slot configs ────────────────────────────────────────────────────────────

func (s *Store) GetSlotConfig(_ context.Context, team, system string) (*slots.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.configs[[2]string{team, system}]
	if !ok {
		return nil, pipeline.NotFoundf("slot config %s/%s", team, system)
	}
	return &c, nil
}

func (s *Store) UpsertSlotConfig(_ context.Context, c slots.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[[2]string{c.Team, c.System}] = c
	return nil
}

func (s *Store) ListSlotConfigs(context.Context) ([]slots.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]slots.Config, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		return out[i].System < out[j].System
	})
	return out, nil
}
