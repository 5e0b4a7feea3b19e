// Package booking turns an applicant's slot choice into a calendar-backed
// interview. It owns the interview offer state machine from PENDING onwards
// and the single-track selection rule.
package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/calendar"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/metrics"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/slots"
)

// Calendar is the external calendar the coordinator books against.
type Calendar interface {
	Busy(ctx context.Context, calendarIDs []string, from, to time.Time) ([]slots.Interval, error)
	CreateEvent(ctx context.Context, calendarID string, inv calendar.Invite) (string, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Coordinator implements slot lookup, selection, booking, cancellation and
// outcome recording.
type Coordinator struct {
	svc     *pipeline.Service
	repo    pipeline.Repository
	configs slots.ConfigStore
	cal     Calendar
	locks   Locker
	horizon int
	log     *zap.Logger
	now     func() time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithHorizonDays sets how many days ahead slots are offered.
func WithHorizonDays(n int) Option { return func(c *Coordinator) { c.horizon = n } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

// New returns a Coordinator. cal may be nil when no calendar credentials
// are configured; every system then reports its configuration as missing.
func New(svc *pipeline.Service, configs slots.ConfigStore, cal Calendar, locks Locker, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		svc:     svc,
		repo:    svc.Repository(),
		configs: configs,
		cal:     cal,
		locks:   locks,
		horizon: 14,
		log:     log,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ─── Availability ────────────────────────────────────────────────────────────

// Availability is the slot listing of one offer. ConfigMissing means the
// system is not ready for booking yet; Slots is then empty.
type Availability struct {
	System        string           `json:"system"`
	ConfigMissing bool             `json:"configMissing"`
	Timezone      string           `json:"timezone,omitempty"`
	Slots         []slots.Interval `json:"slots"`
}

// AvailableSlots lists the free slots for system on the application.
func (c *Coordinator) AvailableSlots(ctx context.Context, actor pipeline.Actor, appID, system string) (*Availability, error) {
	app, team, err := c.load(ctx, actor, appID, system)
	if err != nil {
		return nil, err
	}
	if actor.Role.Scope() == pipeline.ScopeNone {
		if err := app.CheckBiddable(team.TrackPolicy(), system); err != nil {
			return nil, err
		}
	}

	out := &Availability{System: system, Slots: []slots.Interval{}}
	cfg, err := c.slotConfig(ctx, app.Team, system)
	if errors.Is(err, pipeline.ErrMisconfigured) {
		c.log.Warn("slot configuration unusable", zap.String("team", app.Team), zap.String("system", system), zap.Error(err))
		out.ConfigMissing = true
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Timezone = cfg.Timezone

	now := c.now()
	busy, err := c.busy(ctx, app, system, cfg, now, now.AddDate(0, 0, c.horizon+1))
	if err != nil {
		return nil, err
	}
	seq, err := slots.Compute(*cfg, busy, now, c.horizon)
	if err != nil {
		out.ConfigMissing = true
		return out, nil
	}
	out.Slots = append(out.Slots, slices.Collect(seq)...)
	return out, nil
}

// ─── Selection ───────────────────────────────────────────────────────────────

// SelectSystem pins the applicant's single interview track.
func (c *Coordinator) SelectSystem(ctx context.Context, actor pipeline.Actor, appID, system string) (*pipeline.Application, error) {
	_, team, err := c.load(ctx, actor, appID, system)
	if err != nil {
		return nil, err
	}
	app, err := c.repo.UpdateApplication(ctx, appID, func(a *pipeline.Application) error {
		if err := pipeline.RequireOwner(actor, a); err != nil {
			return err
		}
		if err := a.SelectSystem(team.TrackPolicy(), system); err != nil {
			return err
		}
		a.UpdatedAt = c.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.svc.Publish(ctx, pipeline.EventApplicationUpdated, app, system, actor)
	return app, nil
}

// ─── Booking ─────────────────────────────────────────────────────────────────

// BookSlot confirms slot for system. The availability re-check, the event
// creation and the SCHEDULED write run under the (team, system) lock; a slot
// taken in the meantime yields ErrConflict and the caller must re-query.
func (c *Coordinator) BookSlot(ctx context.Context, actor pipeline.Actor, appID, system string, slot slots.Interval) (app *pipeline.Application, err error) {
	team := ""
	defer func() { c.countBooking(team, err) }()

	if actor.Role.Scope() != pipeline.ScopeNone {
		return nil, pipeline.ErrPermissionDenied
	}
	cur, t, err := c.load(ctx, actor, appID, system)
	if err != nil {
		return nil, err
	}
	team = t.Name
	policy := t.TrackPolicy()
	if err := cur.CheckBiddable(policy, system); err != nil {
		return nil, err
	}
	if !slot.Start.Before(slot.End) {
		return nil, pipeline.Invalidf("slot end must be after its start")
	}
	cfg, err := c.slotConfig(ctx, cur.Team, system)
	if err != nil {
		return nil, err
	}

	release, err := c.locks.Acquire(ctx, LockKey(cur.Team, system))
	if errors.Is(err, ErrLockTimeout) {
		return nil, pipeline.Conflictf("another booking for %s is in progress", system)
	}
	if err != nil {
		return nil, fmt.Errorf("bookSlot lock: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			c.log.Warn("booking lock release failed", zap.String("system", system), zap.Error(err))
		}
	}()

	now := c.now()
	claimed, err := c.repo.UpdateApplication(ctx, appID, func(a *pipeline.Application) error {
		if err := a.CheckBiddable(policy, system); err != nil {
			return err
		}
		return a.Claim(system, slot.Start, slot.End, now.UTC())
	})
	if err != nil {
		return nil, err
	}
	// From here on every failure must give the claim back.
	bg := context.WithoutCancel(ctx)

	busy, err := c.busy(ctx, claimed, system, cfg, slot.Start.Add(-24*time.Hour), slot.End.Add(24*time.Hour))
	if err != nil {
		c.revert(bg, appID, system, slot)
		return nil, err
	}
	if !slots.Bookable(*cfg, busy, now, c.horizon, slot) {
		c.revert(bg, appID, system, slot)
		return nil, pipeline.Conflictf("slot %s is no longer available", slot.Start.Format(time.RFC3339))
	}

	eventID, err := c.cal.CreateEvent(ctx, cfg.CalendarID, c.invite(ctx, claimed, system, cfg, slot))
	if err != nil {
		c.revert(bg, appID, system, slot)
		return nil, fmt.Errorf("%w: calendar: %v", errCalendar, err)
	}

	app, err = c.repo.UpdateApplication(bg, appID, func(a *pipeline.Application) error {
		if err := a.ConfirmBooking(system, slot.Start, slot.End, eventID); err != nil {
			return err
		}
		a.UpdatedAt = c.now().UTC()
		return nil
	})
	if err != nil {
		if derr := c.cal.DeleteEvent(bg, cfg.CalendarID, eventID); derr != nil {
			c.log.Error("compensating event delete failed",
				zap.String("applicationId", appID), zap.String("eventId", eventID), zap.Error(derr))
		}
		c.revert(bg, appID, system, slot)
		return nil, err
	}

	c.log.Info("interview booked",
		zap.String("applicationId", appID), zap.String("team", app.Team), zap.String("system", system),
		zap.Time("start", slot.Start), zap.String("eventId", eventID))
	c.svc.Publish(bg, pipeline.EventInterviewScheduled, app, system, actor)
	return app, nil
}

// errCalendar marks calendar failures for the booking metric.
var errCalendar = errors.New("calendar unavailable")

// revert abandons our SCHEDULING claim if it is still ours.
func (c *Coordinator) revert(ctx context.Context, appID, system string, slot slots.Interval) {
	_, err := c.repo.UpdateApplication(ctx, appID, func(a *pipeline.Application) error {
		o := a.InterviewOffer(system)
		if o == nil || o.Status != pipeline.OfferScheduling || o.ScheduledAt == nil || !o.ScheduledAt.Equal(slot.Start) {
			return nil
		}
		return a.AbandonClaim(system)
	})
	if err != nil {
		c.log.Error("reverting booking claim failed",
			zap.String("applicationId", appID), zap.String("system", system), zap.Error(err))
	}
}

func (c *Coordinator) invite(ctx context.Context, app *pipeline.Application, system string, cfg *slots.Config, slot slots.Interval) calendar.Invite {
	name, attendees := app.ApplicantID, slices.Clone(cfg.InterviewerEmails)
	if who, err := c.repo.GetApplicant(ctx, app.ApplicantID); err == nil {
		name = who.Name
		attendees = append(attendees, who.Email)
	} else {
		c.log.Warn("applicant lookup for invite failed", zap.String("applicantId", app.ApplicantID), zap.Error(err))
	}
	return calendar.Invite{
		Summary:     fmt.Sprintf("%s %s interview: %s", app.Team, system, name),
		Description: fmt.Sprintf("Application %s", app.ID),
		Start:       slot.Start,
		End:         slot.End,
		Timezone:    cfg.Timezone,
		Attendees:   attendees,
	}
}

// ─── Cancellation and outcomes ───────────────────────────────────────────────

// CancelBooking cancels a SCHEDULED interview. The offer stays for
// rescheduling. The owner and staff authorized for system may cancel.
func (c *Coordinator) CancelBooking(ctx context.Context, actor pipeline.Actor, appID, system, reason string) (*pipeline.Application, error) {
	cur, _, err := c.load(ctx, actor, appID, system)
	if err != nil {
		return nil, err
	}
	if actor.Role.Scope() != pipeline.ScopeNone {
		if _, err := pipeline.FilterAllowedSystems(actor, cur.Team, []string{system}); err != nil {
			return nil, err
		}
	}
	o := cur.InterviewOffer(system)
	if o == nil {
		return nil, pipeline.NotFoundf("no interview offer from %s", system)
	}
	if o.Status != pipeline.OfferScheduled {
		return nil, pipeline.Invalidf("interview offer from %s is %s, not %s", system, o.Status, pipeline.OfferScheduled)
	}
	if err := c.deleteEvent(ctx, cur.Team, *o); err != nil {
		return nil, err
	}

	app, err := c.repo.UpdateApplication(ctx, appID, func(a *pipeline.Application) error {
		if _, err := a.CancelBooking(system, reason); err != nil {
			return err
		}
		a.UpdatedAt = c.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.BookingsTotal.WithLabelValues(app.Team, metrics.ResultCancelled).Inc()
	c.log.Info("interview cancelled",
		zap.String("applicationId", appID), zap.String("system", system), zap.String("actor", actor.UserID))
	c.svc.Publish(ctx, pipeline.EventInterviewCancelled, app, system, actor)
	return app, nil
}

// RecordOutcome stores the result of a SCHEDULED interview. Staff only.
func (c *Coordinator) RecordOutcome(ctx context.Context, actor pipeline.Actor, appID, system, outcome, reason string) (*pipeline.Application, error) {
	st, err := pipeline.ParseOfferStatus(outcome)
	if err != nil || !pipeline.IsOutcome(st) {
		return nil, pipeline.Invalidf("outcome must be one of COMPLETED, CANCELLED, NO_SHOW")
	}
	cur, err := c.repo.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if _, err := pipeline.FilterAllowedSystems(actor, cur.Team, []string{system}); err != nil {
		return nil, err
	}
	o := cur.InterviewOffer(system)
	if o == nil {
		return nil, pipeline.NotFoundf("no interview offer from %s", system)
	}
	if o.Status != pipeline.OfferScheduled {
		return nil, pipeline.Invalidf("interview offer from %s is %s, not %s", system, o.Status, pipeline.OfferScheduled)
	}
	if st == pipeline.OfferCancelled {
		if err := c.deleteEvent(ctx, cur.Team, *o); err != nil {
			return nil, err
		}
	}

	app, err := c.repo.UpdateApplication(ctx, appID, func(a *pipeline.Application) error {
		if _, err := a.RecordOutcome(system, st, reason); err != nil {
			return err
		}
		a.UpdatedAt = c.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	typ := pipeline.EventApplicationUpdated
	if st == pipeline.OfferCancelled {
		typ = pipeline.EventInterviewCancelled
	}
	c.svc.Publish(ctx, typ, app, system, actor)
	return app, nil
}

// OffersRemoved releases the calendar events of offers dropped by a
// rejection. Failures are logged; the rejection already stands.
func (c *Coordinator) OffersRemoved(ctx context.Context, app *pipeline.Application, removed []pipeline.InterviewOffer) {
	for _, o := range removed {
		if o.CalendarEventID == "" || o.Status != pipeline.OfferScheduled {
			continue
		}
		if err := c.deleteEvent(ctx, app.Team, o); err != nil {
			c.log.Warn("releasing event of rejected offer failed",
				zap.String("applicationId", app.ID), zap.String("system", o.System), zap.Error(err))
		}
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// load fetches the application and checks that actor may see it and that
// system belongs to its team.
func (c *Coordinator) load(ctx context.Context, actor pipeline.Actor, appID, system string) (*pipeline.Application, pipeline.Team, error) {
	app, err := c.repo.GetApplication(ctx, appID)
	if err != nil {
		return nil, pipeline.Team{}, err
	}
	if actor.Role.Scope() == pipeline.ScopeNone {
		if err := pipeline.RequireOwner(actor, app); err != nil {
			return nil, pipeline.Team{}, err
		}
		phase, err := c.svc.Phase(ctx)
		if err != nil {
			return nil, pipeline.Team{}, err
		}
		if !phase.AtLeast(pipeline.PhaseReleaseInterviews) {
			return nil, pipeline.Team{}, pipeline.NotFoundf("no interview offer from %s", system)
		}
	} else if !pipeline.CanViewTeam(actor, app.Team) {
		return nil, pipeline.Team{}, pipeline.NotFoundf("application %s", appID)
	}
	team, err := c.svc.Catalog().Team(app.Team)
	if err != nil {
		return nil, pipeline.Team{}, err
	}
	if !team.HasSystem(system) {
		return nil, pipeline.Team{}, pipeline.Invalidf("system %q is not part of team %s", system, team.Name)
	}
	return app, team, nil
}

// slotConfig loads and validates the config; any unusable state is
// ErrMisconfigured.
func (c *Coordinator) slotConfig(ctx context.Context, team, system string) (*slots.Config, error) {
	if c.cal == nil {
		return nil, pipeline.Misconfiguredf("no calendar client configured")
	}
	cfg, err := c.configs.GetSlotConfig(ctx, team, system)
	if errors.Is(err, pipeline.ErrNotFound) {
		return nil, pipeline.Misconfiguredf("no slot configuration for %s/%s", team, system)
	}
	if err != nil {
		return nil, fmt.Errorf("slotConfig: %w", err)
	}
	if _, err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// busy merges the interviewers' calendars, other applications' held
// bookings of the same system, and the applicant's own bookings elsewhere.
func (c *Coordinator) busy(ctx context.Context, app *pipeline.Application, system string, cfg *slots.Config, from, to time.Time) ([]slots.Interval, error) {
	ids := append([]string{cfg.CalendarID}, cfg.InterviewerEmails...)
	busy, err := c.cal.Busy(ctx, ids, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCalendar, err)
	}
	held, err := c.repo.ListBookings(ctx, app.Team, system, from, to)
	if err != nil {
		return nil, fmt.Errorf("listBookings: %w", err)
	}
	for _, b := range held {
		if b.ApplicationID == app.ID && b.System == system {
			continue
		}
		busy = append(busy, slots.Interval{Start: b.Start, End: b.End})
	}
	for _, o := range app.InterviewOffers {
		if o.System == system || o.ScheduledAt == nil || o.ScheduledEndAt == nil {
			continue
		}
		if o.Status == pipeline.OfferScheduling || o.Status == pipeline.OfferScheduled {
			busy = append(busy, slots.Interval{Start: *o.ScheduledAt, End: *o.ScheduledEndAt})
		}
	}
	return busy, nil
}

func (c *Coordinator) deleteEvent(ctx context.Context, team string, o pipeline.InterviewOffer) error {
	if o.CalendarEventID == "" {
		return nil
	}
	cfg, err := c.slotConfig(ctx, team, o.System)
	if err != nil {
		c.log.Warn("cannot resolve calendar for event",
			zap.String("system", o.System), zap.String("eventId", o.CalendarEventID), zap.Error(err))
		return nil
	}
	if err := c.cal.DeleteEvent(ctx, cfg.CalendarID, o.CalendarEventID); err != nil {
		return fmt.Errorf("%w: %v", errCalendar, err)
	}
	return nil
}

func (c *Coordinator) countBooking(team string, err error) {
	result := metrics.ResultBooked
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrConflict):
		result = metrics.ResultConflict
	case errors.Is(err, pipeline.ErrMisconfigured):
		result = metrics.ResultMissing
	case errors.Is(err, errCalendar):
		result = metrics.ResultCalendar
	default:
		result = metrics.ResultError
	}
	metrics.BookingsTotal.WithLabelValues(team, result).Inc()
}

// IsCalendarError reports whether err came from the external calendar.
func IsCalendarError(err error) bool { return errors.Is(err, errCalendar) }
