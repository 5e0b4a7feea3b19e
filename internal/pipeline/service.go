package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/metrics"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service is the transport-agnostic façade over the Offer Store, the Phase
// Gate and the Authorization Policy. Every mutation returns the
// authoritative post-mutation application.
type Service struct {
	repo    Repository
	phases  PhaseStore
	catalog Catalog
	pub     Publisher
	hook    OfferRemovalHook
	log     *zap.Logger
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

// WithOfferRemovalHook sets the hook told about offers removed by rejection.
func WithOfferRemovalHook(h OfferRemovalHook) Option { return func(s *Service) { s.hook = h } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService returns a configured Service.
func NewService(repo Repository, phases PhaseStore, catalog Catalog, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		phases:  phases,
		catalog: catalog,
		pub:     NopPublisher{},
		log:     log,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetOfferRemovalHook wires the hook after construction, for hooks that
// themselves depend on the Service.
func (s *Service) SetOfferRemovalHook(h OfferRemovalHook) { s.hook = h }

// Catalog returns the team catalog.
func (s *Service) Catalog() Catalog { return s.catalog }

// Repository returns the underlying Offer Store.
func (s *Service) Repository() Repository { return s.repo }

// ─── Applicants and applications ─────────────────────────────────────────────

// RegisterApplicant records the caller's identity. Registering again updates
// name and email.
func (s *Service) RegisterApplicant(ctx context.Context, actor Actor, name, email string) (*Applicant, error) {
	if actor.Role.Scope() != ScopeNone {
		return nil, denied("only applicants register themselves")
	}
	if name == "" || email == "" {
		return nil, invalid("name and email are required")
	}
	a := &Applicant{ID: actor.UserID, Name: name, Email: email}
	if err := s.repo.CreateApplicant(ctx, a); err != nil {
		return nil, fmt.Errorf("registerApplicant: %w", err)
	}
	return a, nil
}

// CreateApplication opens an IN_PROGRESS application for the caller. An
// applicant holds at most one application per team.
func (s *Service) CreateApplication(ctx context.Context, actor Actor, team string, preferred []string) (*Application, error) {
	if actor.Role.Scope() != ScopeNone {
		return nil, denied("only applicants apply")
	}
	t, err := s.catalog.Team(team)
	if err != nil {
		return nil, err
	}
	if len(preferred) > MaxPreferredSystems {
		return nil, invalid("at most %d preferred systems", MaxPreferredSystems)
	}
	if len(preferred) > 0 {
		if err := t.validateSystems(preferred); err != nil {
			return nil, err
		}
		if len(t.cleanSystems(preferred)) != len(preferred) {
			return nil, invalid("preferred systems must not repeat")
		}
	}
	if _, err := s.repo.GetApplicant(ctx, actor.UserID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	app := &Application{
		ID:                uuid.NewString(),
		ApplicantID:       actor.UserID,
		Team:              t.Name,
		Status:            StatusInProgress,
		PreferredSystems:  append([]string{}, preferred...),
		InterviewOffers:   []InterviewOffer{},
		TrialOffers:       []TrialOffer{},
		RejectedBySystems: SystemSet{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	s.publish(ctx, EventApplicationUpdated, app, "", actor)
	return app, nil
}

// SubmitApplication moves the caller's application to SUBMITTED.
func (s *Service) SubmitApplication(ctx context.Context, actor Actor, appID string) (*Application, error) {
	app, err := s.repo.UpdateApplication(ctx, appID, func(a *Application) error {
		if err := requireOwner(actor, a); err != nil {
			return err
		}
		return a.Submit()
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventApplicationUpdated, app, "", actor)
	return app, nil
}

// GetApplication returns the application as actor may see it.
func (s *Service) GetApplication(ctx context.Context, actor Actor, appID string) (*View, error) {
	app, err := s.repo.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := requireViewer(actor, app); err != nil {
		return nil, err
	}
	return s.view(ctx, app, actor)
}

// ListApplications returns every application of team visible to actor.
func (s *Service) ListApplications(ctx context.Context, actor Actor, team string) ([]*View, error) {
	if !CanViewTeam(actor, team) {
		return nil, denied("%s cannot list applications of team %s", actor.Role, team)
	}
	apps, err := s.repo.ListApplications(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("listApplications: %w", err)
	}
	phase, err := s.Phase(ctx)
	if err != nil {
		return nil, err
	}
	t, _ := s.catalog.Team(team)
	views := make([]*View, 0, len(apps))
	for _, a := range apps {
		views = append(views, NewView(a, t, phase, actor))
	}
	return views, nil
}

func (s *Service) view(ctx context.Context, app *Application, actor Actor) (*View, error) {
	phase, err := s.Phase(ctx)
	if err != nil {
		return nil, err
	}
	t, _ := s.catalog.Team(app.Team)
	return NewView(app, t, phase, actor), nil
}

// ─── Offers and rejections ───────────────────────────────────────────────────

// ExtendInterviewOffers adds PENDING interview offers for the allowed subset
// of systems. Systems already offered or that rejected the applicant are
// skipped.
func (s *Service) ExtendInterviewOffers(ctx context.Context, actor Actor, appID string, systems []string) (*Application, error) {
	var added []string
	app, err := s.repo.UpdateApplication(ctx, appID, func(a *Application) error {
		allowed, err := s.authorizeSystems(actor, a, systems)
		if err != nil {
			return err
		}
		if stage(a.Status) < stage(StatusSubmitted) && a.Status != StatusRejected {
			return invalid("application has not been submitted")
		}
		added = a.ExtendInterviewOffers(allowed)
		if len(added) == 0 {
			return errNoChange
		}
		a.UpdatedAt = s.now().UTC()
		return nil
	})
	if errors.Is(err, errNoChange) {
		return s.repo.GetApplication(ctx, appID)
	}
	if err != nil {
		return nil, err
	}
	metrics.OffersExtended.WithLabelValues(app.Team, "interview").Add(float64(len(added)))
	s.log.Info("interview offers extended",
		zap.String("applicationId", app.ID), zap.Strings("systems", added), zap.String("actor", actor.UserID))
	s.publish(ctx, EventApplicationUpdated, app, "", actor)
	return app, nil
}

// RejectResult is the outcome of RejectFromSystems.
type RejectResult struct {
	Application   *Application `json:"application"`
	FullyRejected bool         `json:"fullyRejected"`
}

// RejectFromSystems rejects the applicant from the systems actor may act
// for. It is idempotent.
func (s *Service) RejectFromSystems(ctx context.Context, actor Actor, appID string, systems []string) (*RejectResult, error) {
	var (
		removed []InterviewOffer
		full    bool
		applied []string
	)
	app, err := s.repo.UpdateApplication(ctx, appID, func(a *Application) error {
		allowed, err := s.authorizeSystems(actor, a, systems)
		if err != nil {
			return err
		}
		applied = allowed
		removed, full = a.RejectSystems(allowed)
		a.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RejectionsTotal.WithLabelValues(app.Team, fmt.Sprint(full)).Inc()
	s.log.Info("systems rejected applicant",
		zap.String("applicationId", app.ID), zap.Strings("systems", applied),
		zap.Bool("fullyRejected", full), zap.String("actor", actor.UserID))
	if len(removed) > 0 && s.hook != nil {
		s.hook.OffersRemoved(ctx, app, removed)
	}
	s.publish(ctx, EventApplicationUpdated, app, "", actor)
	return &RejectResult{Application: app, FullyRejected: full}, nil
}

// RecordTrialOffer extends trial offers. Malformed system lists leave the
// application untouched.
func (s *Service) RecordTrialOffer(ctx context.Context, actor Actor, appID string, systems []string) (*Application, error) {
	var added []string
	app, err := s.repo.UpdateApplication(ctx, appID, func(a *Application) error {
		t, err := s.catalog.Team(a.Team)
		if err != nil {
			return err
		}
		clean := t.cleanSystems(systems)
		if len(clean) == 0 {
			s.log.Warn("ignoring trial offer without valid systems",
				zap.String("applicationId", a.ID), zap.Strings("systems", systems))
			return errNoChange
		}
		allowed, err := FilterAllowedSystems(actor, a.Team, clean)
		if err != nil {
			return err
		}
		added = a.AddTrialOffers(allowed)
		if len(added) == 0 {
			return errNoChange
		}
		a.UpdatedAt = s.now().UTC()
		return nil
	})
	if errors.Is(err, errNoChange) {
		return s.repo.GetApplication(ctx, appID)
	}
	if err != nil {
		return nil, err
	}
	metrics.OffersExtended.WithLabelValues(app.Team, "trial").Add(float64(len(added)))
	s.publish(ctx, EventApplicationUpdated, app, "", actor)
	return app, nil
}

// RespondToTrialOffer records the applicant's answer to a released trial offer.
func (s *Service) RespondToTrialOffer(ctx context.Context, actor Actor, appID, system string, accepted bool, reason string) (*Application, error) {
	phase, err := s.Phase(ctx)
	if err != nil {
		return nil, err
	}
	app, err := s.repo.UpdateApplication(ctx, appID, func(a *Application) error {
		if err := requireOwner(actor, a); err != nil {
			return err
		}
		if !phase.AtLeast(PhaseReleaseTrial) {
			return notFound("no trial offer from %s", system)
		}
		if err := a.RespondToTrialOffer(system, accepted, reason); err != nil {
			return err
		}
		a.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventApplicationUpdated, app, system, actor)
	return app, nil
}

// RecordAcceptance marks the application ACCEPTED.
func (s *Service) RecordAcceptance(ctx context.Context, actor Actor, appID string) (*Application, error) {
	return s.decide(ctx, actor, appID, (*Application).Accept)
}

// RecordWaitlist marks the application WAITLISTED.
func (s *Service) RecordWaitlist(ctx context.Context, actor Actor, appID string) (*Application, error) {
	return s.decide(ctx, actor, appID, (*Application).Waitlist)
}

func (s *Service) decide(ctx context.Context, actor Actor, appID string, apply func(*Application) error) (*Application, error) {
	app, err := s.repo.UpdateApplication(ctx, appID, func(a *Application) error {
		if err := requirePrivileged(actor, a.Team); err != nil {
			return err
		}
		if err := apply(a); err != nil {
			return err
		}
		a.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("decision recorded",
		zap.String("applicationId", app.ID), zap.String("status", string(app.Status)), zap.String("actor", actor.UserID))
	s.publish(ctx, EventApplicationUpdated, app, "", actor)
	return app, nil
}

// StatusUpdate is the body of the status endpoint.
type StatusUpdate struct {
	Status  string   `json:"status"`
	Systems []string `json:"systems,omitempty"`
}

// UpdateStatus routes a generic status request to the matching mutation.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, appID string, u StatusUpdate) (*RejectResult, error) {
	st, err := ParseStatus(u.Status)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	var app *Application
	switch st {
	case StatusInterview:
		app, err = s.ExtendInterviewOffers(ctx, actor, appID, u.Systems)
	case StatusTrial:
		app, err = s.RecordTrialOffer(ctx, actor, appID, u.Systems)
	case StatusAccepted:
		app, err = s.RecordAcceptance(ctx, actor, appID)
	case StatusWaitlisted:
		app, err = s.RecordWaitlist(ctx, actor, appID)
	case StatusRejected:
		return s.RejectFromSystems(ctx, actor, appID, u.Systems)
	default:
		return nil, invalid("status %s cannot be set directly", st)
	}
	if err != nil {
		return nil, err
	}
	return &RejectResult{Application: app, FullyRejected: app.Status == StatusRejected}, nil
}

// ─── Phase ───────────────────────────────────────────────────────────────────

// Phase reads the current recruiting phase from storage.
func (s *Service) Phase(ctx context.Context) (Phase, error) {
	p, err := s.phases.GetPhase(ctx)
	if err != nil {
		return "", fmt.Errorf("getPhase: %w", err)
	}
	return p, nil
}

// SetPhase advances the recruiting phase. Only admins may set it, and only
// forward unless force is given.
func (s *Service) SetPhase(ctx context.Context, actor Actor, p Phase, force bool) (Phase, error) {
	if actor.Role.Scope() != ScopeGlobal {
		return "", denied("only admins set the recruiting phase")
	}
	if p.Index() < 0 {
		return "", invalid("unknown recruiting phase %q", p)
	}
	cur, err := s.Phase(ctx)
	if err != nil {
		return "", err
	}
	if !force && p.Index() < cur.Index() {
		return "", invalid("phase %s is behind the current phase %s", p, cur)
	}
	if err := s.phases.SetPhase(ctx, p); err != nil {
		return "", fmt.Errorf("setPhase: %w", err)
	}
	s.log.Info("recruiting phase set",
		zap.String("from", string(cur)), zap.String("to", string(p)),
		zap.Bool("force", force), zap.String("actor", actor.UserID))
	return p, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// errNoChange aborts UpdateApplication without persisting anything.
var errNoChange = errors.New("no change")

// authorizeSystems validates and narrows systems for a staff mutation.
func (s *Service) authorizeSystems(actor Actor, a *Application, systems []string) ([]string, error) {
	if len(systems) == 0 {
		return nil, invalid("at least one system is required")
	}
	t, err := s.catalog.Team(a.Team)
	if err != nil {
		return nil, err
	}
	allowed, err := FilterAllowedSystems(actor, a.Team, systems)
	if err != nil {
		return nil, err
	}
	if err := t.validateSystems(allowed); err != nil {
		return nil, err
	}
	return t.cleanSystems(allowed), nil
}

func (s *Service) publish(ctx context.Context, typ string, app *Application, system string, actor Actor) {
	e := Event{
		Type:          typ,
		ApplicationID: app.ID,
		ApplicantID:   app.ApplicantID,
		Team:          app.Team,
		System:        system,
		Status:        string(app.Status),
		ActorID:       actor.UserID,
		At:            s.now().UTC().Format(time.RFC3339),
	}
	if err := s.pub.Publish(ctx, e); err != nil {
		s.log.Warn("publish event failed", zap.String("type", typ), zap.String("applicationId", app.ID), zap.Error(err))
	}
}

// Publish emits an event on behalf of collaborators such as the booking
// coordinator.
func (s *Service) Publish(ctx context.Context, typ string, app *Application, system string, actor Actor) {
	s.publish(ctx, typ, app, system, actor)
}

// requireOwner passes only for the applicant who owns a.
func requireOwner(actor Actor, a *Application) error {
	if actor.Role.Scope() != ScopeNone || actor.UserID != a.ApplicantID {
		return notFound("application %s", a.ID)
	}
	return nil
}

// requireViewer passes for the owner and for staff of the team. Others get
// NotFound so application ids are not confirmed to strangers.
func requireViewer(actor Actor, a *Application) error {
	if actor.Role.Scope() == ScopeNone {
		return requireOwner(actor, a)
	}
	if !CanViewTeam(actor, a.Team) {
		return notFound("application %s", a.ID)
	}
	return nil
}

// RequireOwner is requireOwner for other packages.
func RequireOwner(actor Actor, a *Application) error { return requireOwner(actor, a) }
