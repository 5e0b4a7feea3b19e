package pipeline

import (
	"fmt"
	"time"
)

// Pure mutations on an Application. Callers run them inside
// Repository.UpdateApplication so a failed mutation is never persisted.

// ExtendInterviewOffers appends a PENDING offer for each system not already
// offered and not among the rejecting systems. It returns the systems added.
func (a *Application) ExtendInterviewOffers(systems []string) []string {
	var added []string
	for _, s := range systems {
		if a.InterviewOffer(s) != nil || a.RejectedBySystems.Has(s) {
			continue
		}
		a.InterviewOffers = append(a.InterviewOffers, InterviewOffer{System: s, Status: OfferPending})
		added = append(added, s)
	}
	if len(added) > 0 && stage(a.Status) < stage(StatusInterview) {
		a.Status = StatusInterview
	}
	return added
}

// RejectSystems unions systems into RejectedBySystems and drops their
// interview and trial offers. The application becomes REJECTED when no
// interview offer and no active trial offer is left, unless it was already
// ACCEPTED. It returns the removed interview offers and whether the
// application now stands fully rejected.
func (a *Application) RejectSystems(systems []string) (removed []InterviewOffer, fullyRejected bool) {
	if a.RejectedBySystems == nil {
		a.RejectedBySystems = SystemSet{}
	}
	for _, s := range systems {
		a.RejectedBySystems[s] = struct{}{}
	}

	kept := a.InterviewOffers[:0:0]
	for _, o := range a.InterviewOffers {
		if a.RejectedBySystems.Has(o.System) {
			removed = append(removed, o)
			continue
		}
		kept = append(kept, o)
	}
	a.InterviewOffers = kept

	// A rejecting system withdraws its trial offer as well.
	trials := a.TrialOffers[:0:0]
	for _, t := range a.TrialOffers {
		if !a.RejectedBySystems.Has(t.System) {
			trials = append(trials, t)
		}
	}
	a.TrialOffers = trials

	if a.SelectedSystem != "" && a.RejectedBySystems.Has(a.SelectedSystem) {
		a.SelectedSystem = ""
	}

	if a.Status != StatusAccepted && len(a.InterviewOffers) == 0 && !a.hasActiveTrial() {
		a.Status = StatusRejected
	}
	return removed, a.Status == StatusRejected
}

func (a *Application) hasActiveTrial() bool {
	for _, t := range a.TrialOffers {
		if t.active() {
			return true
		}
	}
	return false
}

// AddTrialOffers appends an unanswered trial offer per new, non-rejecting
// system and returns the systems added.
func (a *Application) AddTrialOffers(systems []string) []string {
	var added []string
	for _, s := range systems {
		if a.TrialOffer(s) != nil || a.RejectedBySystems.Has(s) {
			continue
		}
		a.TrialOffers = append(a.TrialOffers, TrialOffer{System: s})
		added = append(added, s)
	}
	if len(added) > 0 && stage(a.Status) < stage(StatusTrial) {
		a.Status = StatusTrial
	}
	return added
}

// RespondToTrialOffer records the applicant's answer. It is valid once.
func (a *Application) RespondToTrialOffer(system string, accepted bool, reason string) error {
	t := a.TrialOffer(system)
	if t == nil {
		return notFound("no trial offer from %s", system)
	}
	if t.Accepted != nil {
		return invalid("trial offer from %s was already answered", system)
	}
	t.Accepted = &accepted
	if !accepted {
		t.RejectionReason = reason
	}
	return nil
}

// Accept marks the application ACCEPTED. Valid from any undecided status
// that has reached the interview stage.
func (a *Application) Accept() error {
	if IsDecided(a.Status) {
		return invalid("application is already %s", a.Status)
	}
	if stage(a.Status) < stage(StatusInterview) {
		return invalid("cannot accept an application in %s", a.Status)
	}
	a.Status = StatusAccepted
	return nil
}

// Waitlist marks the application WAITLISTED.
func (a *Application) Waitlist() error {
	if IsDecided(a.Status) || a.Status == StatusWaitlisted {
		return invalid("cannot waitlist an application in %s", a.Status)
	}
	if stage(a.Status) < stage(StatusInterview) {
		return invalid("cannot waitlist an application in %s", a.Status)
	}
	a.Status = StatusWaitlisted
	return nil
}

// Submit moves an IN_PROGRESS application to SUBMITTED.
func (a *Application) Submit() error {
	if a.Status != StatusInProgress {
		return invalid("application is %s, not %s", a.Status, StatusInProgress)
	}
	a.Status = StatusSubmitted
	return nil
}

// ─── System selection (single-track teams) ───────────────────────────────────

// NeedsSystemSelection is true on a single-track team while more than one
// offer is PENDING, nothing is booked and no valid selection is pinned.
func (a *Application) NeedsSystemSelection(policy TrackPolicy) bool {
	if policy != TrackSingle {
		return false
	}
	if _, booked := a.bookedSystem(); booked {
		return false
	}
	pending := a.PendingSystems()
	if len(pending) < 2 {
		return false
	}
	for _, s := range pending {
		if s == a.SelectedSystem {
			return false
		}
	}
	return true
}

// SelectSystem pins the applicant's choice among several PENDING offers.
// Reselection is allowed until a booking exists.
func (a *Application) SelectSystem(policy TrackPolicy, system string) error {
	if policy != TrackSingle {
		return invalid("team %s schedules every interview independently", a.Team)
	}
	if booked, ok := a.bookedSystem(); ok {
		return invalid("an interview with %s is already booked", booked)
	}
	pending := a.PendingSystems()
	if len(pending) < 2 {
		return invalid("selection requires more than one pending interview offer")
	}
	for _, s := range pending {
		if s == system {
			a.SelectedSystem = system
			return nil
		}
	}
	return notFound("no pending interview offer from %s", system)
}

// CheckBiddable returns nil when the applicant may book a slot for system.
func (a *Application) CheckBiddable(policy TrackPolicy, system string) error {
	o := a.InterviewOffer(system)
	if o == nil {
		return notFound("no interview offer from %s", system)
	}
	if o.Status != OfferPending && o.Status != OfferCancelled {
		if o.Status == OfferScheduling {
			return Conflictf("a booking for %s is already in progress", system)
		}
		return invalid("interview offer from %s is %s", system, o.Status)
	}
	if policy != TrackSingle {
		return nil
	}
	if booked, ok := a.bookedSystem(); ok {
		return invalid("an interview with %s is already booked", booked)
	}
	if a.NeedsSystemSelection(policy) {
		return invalid("select one system before booking an interview")
	}
	if a.SelectedSystem != "" && a.SelectedSystem != system && o.Status == OfferPending &&
		len(a.PendingSystems()) > 1 {
		return invalid("interview offer from %s is not the selected system", system)
	}
	return nil
}

// ─── Offer state machine ─────────────────────────────────────────────────────

func (o *InterviewOffer) transition(to OfferStatus) error {
	if !IsOfferTransitionAllowed(o.Status, to) {
		return invalid("interview offer from %s: transition %s → %s is not allowed", o.System, o.Status, to)
	}
	o.Status = to
	return nil
}

// Claim moves a biddable offer to SCHEDULING and records the tentative slot.
// A CANCELLED offer re-enters PENDING first.
func (a *Application) Claim(system string, start, end, now time.Time) error {
	o := a.InterviewOffer(system)
	if o == nil {
		return notFound("no interview offer from %s", system)
	}
	if o.Status == OfferCancelled {
		if err := o.transition(OfferPending); err != nil {
			return err
		}
		o.CancelReason = ""
		o.CalendarEventID = ""
	}
	if o.Status.holdsBooking() {
		return Conflictf("interview offer from %s is already %s", system, o.Status)
	}
	if err := o.transition(OfferScheduling); err != nil {
		return err
	}
	o.ScheduledAt, o.ScheduledEndAt = &start, &end
	o.ClaimedAt = &now
	return nil
}

// AbandonClaim undoes an uncommitted SCHEDULING claim. It is not a state
// transition: the claim never became a booking.
func (a *Application) AbandonClaim(system string) error {
	o := a.InterviewOffer(system)
	if o == nil || o.Status != OfferScheduling {
		return nil
	}
	o.Status = OfferPending
	o.ScheduledAt, o.ScheduledEndAt, o.ClaimedAt = nil, nil, nil
	return nil
}

// ConfirmBooking turns the claim for system into a SCHEDULED booking.
func (a *Application) ConfirmBooking(system string, start, end time.Time, eventID string) error {
	o := a.InterviewOffer(system)
	if o == nil {
		return notFound("no interview offer from %s", system)
	}
	if o.Status != OfferScheduling || o.ScheduledAt == nil || !o.ScheduledAt.Equal(start) {
		return Conflictf("booking claim for %s was lost", system)
	}
	if err := o.transition(OfferScheduled); err != nil {
		return err
	}
	o.ScheduledAt, o.ScheduledEndAt = &start, &end
	o.CalendarEventID = eventID
	o.ClaimedAt = nil
	if a.SelectedSystem == "" {
		a.SelectedSystem = system
	}
	return nil
}

// CancelBooking cancels a SCHEDULED booking, keeping the offer for reschedule.
// The event id is dropped; the caller deletes the event first.
func (a *Application) CancelBooking(system, reason string) (*InterviewOffer, error) {
	o := a.InterviewOffer(system)
	if o == nil {
		return nil, notFound("no interview offer from %s", system)
	}
	if o.Status != OfferScheduled {
		return nil, invalid("interview offer from %s is %s, not %s", system, o.Status, OfferScheduled)
	}
	if err := o.transition(OfferCancelled); err != nil {
		return nil, err
	}
	o.CancelReason = reason
	o.CalendarEventID = ""
	return o, nil
}

// RecordOutcome stores the staff-recorded result of a SCHEDULED interview.
func (a *Application) RecordOutcome(system string, outcome OfferStatus, reason string) (*InterviewOffer, error) {
	if !IsOutcome(outcome) {
		return nil, invalid("%s is not an interview outcome", outcome)
	}
	o := a.InterviewOffer(system)
	if o == nil {
		return nil, notFound("no interview offer from %s", system)
	}
	if o.Status != OfferScheduled {
		return nil, invalid("interview offer from %s is %s, not %s", system, o.Status, OfferScheduled)
	}
	if err := o.transition(outcome); err != nil {
		return nil, err
	}
	if outcome == OfferCancelled {
		o.CancelReason = reason
		o.CalendarEventID = ""
	}
	return o, nil
}

// String is used in log fields.
func (b Booking) String() string {
	return fmt.Sprintf("%s/%s %s–%s", b.ApplicationID, b.System,
		b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339))
}
