package pipeline_test

import (
	"errors"
	"testing"
	"time"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
)

func submitted(team string) *pipeline.Application {
	return &pipeline.Application{
		ID:                "app-1",
		ApplicantID:       "applicant-1",
		Team:              team,
		Status:            pipeline.StatusSubmitted,
		RejectedBySystems: pipeline.SystemSet{},
	}
}

func offerStatus(t *testing.T, a *pipeline.Application, system string) pipeline.OfferStatus {
	t.Helper()
	o := a.InterviewOffer(system)
	if o == nil {
		t.Fatalf("no interview offer from %s", system)
	}
	return o.Status
}

// ── ExtendInterviewOffers ──────────────────────────────────────────────────

func TestExtendInterviewOffers_IdempotentPerSystem(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery"})
	added := a.ExtendInterviewOffers([]string{"Battery", "Powertrain"})

	if len(added) != 1 || added[0] != "Powertrain" {
		t.Errorf("added = %v, want [Powertrain]", added)
	}
	if len(a.InterviewOffers) != 2 {
		t.Errorf("got %d offers, want 2", len(a.InterviewOffers))
	}
	if a.Status != pipeline.StatusInterview {
		t.Errorf("status = %s, want INTERVIEW", a.Status)
	}
}

func TestExtendInterviewOffers_DoesNotRegressStatus(t *testing.T) {
	a := submitted("Electric")
	a.Status = pipeline.StatusTrial
	a.ExtendInterviewOffers([]string{"Battery"})
	if a.Status != pipeline.StatusTrial {
		t.Errorf("status = %s, want TRIAL", a.Status)
	}
}

func TestExtendInterviewOffers_SkipsRejectingSystems(t *testing.T) {
	a := submitted("Electric")
	a.RejectSystems([]string{"Battery"})
	if a.Status != pipeline.StatusRejected {
		t.Fatalf("status = %s, want REJECTED", a.Status)
	}
	if added := a.ExtendInterviewOffers([]string{"Battery"}); len(added) != 0 {
		t.Errorf("rejected system was re-offered: %v", added)
	}
	if a.Status != pipeline.StatusRejected {
		t.Errorf("status = %s, want REJECTED", a.Status)
	}

	a.ExtendInterviewOffers([]string{"Powertrain"})
	if a.Status != pipeline.StatusInterview {
		t.Errorf("fresh offer should revive the application, status = %s", a.Status)
	}
}

// ── RejectSystems ──────────────────────────────────────────────────────────

func TestRejectSystems_PartialKeepsStatus(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery", "Powertrain"})

	removed, full := a.RejectSystems([]string{"Battery"})
	if full || a.Status != pipeline.StatusInterview {
		t.Errorf("partial rejection flipped status to %s (full=%v)", a.Status, full)
	}
	if len(removed) != 1 || removed[0].System != "Battery" {
		t.Errorf("removed = %v, want Battery", removed)
	}
	if a.InterviewOffer("Battery") != nil {
		t.Error("rejected offer should be removed, not flagged")
	}
}

func TestRejectSystems_LastOfferFlipsToRejected(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery", "Powertrain"})
	a.RejectSystems([]string{"Battery"})

	_, full := a.RejectSystems([]string{"Powertrain"})
	if !full || a.Status != pipeline.StatusRejected {
		t.Errorf("status = %s full=%v, want REJECTED true", a.Status, full)
	}
	if len(a.InterviewOffers) != 0 {
		t.Errorf("interview offers = %v, want none", a.InterviewOffers)
	}
	for _, s := range []string{"Battery", "Powertrain"} {
		if !a.RejectedBySystems.Has(s) {
			t.Errorf("%s missing from rejectedBySystems", s)
		}
	}
}

func TestRejectSystems_Idempotent(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery", "Powertrain"})

	a.RejectSystems([]string{"Battery", "Battery"})
	first := a.RejectedBySystems.Sorted()
	a.RejectSystems([]string{"Battery"})
	second := a.RejectedBySystems.Sorted()

	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("rejectedBySystems changed across repeats: %v then %v", first, second)
	}
}

// An active trial offer keeps the application alive even with no interview
// offer left.
func TestRejectSystems_ActiveTrialPreventsFullRejection(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery", "Powertrain"})
	a.AddTrialOffers([]string{"Powertrain"})
	a.RejectSystems([]string{"Battery"})

	// Drop the Powertrain interview record without rejecting Powertrain.
	a.InterviewOffers = nil
	_, full := a.RejectSystems([]string{"Electronics"})
	if full || a.Status == pipeline.StatusRejected {
		t.Errorf("status = %s, want non-rejected while a trial offer is open", a.Status)
	}

	declined := false
	a.TrialOffers[0].Accepted = &declined
	if _, full := a.RejectSystems([]string{"Electronics"}); !full {
		t.Error("declined trial offer should not keep the application alive")
	}
}

func TestRejectSystems_ClearsSelectionAndTrials(t *testing.T) {
	a := submitted("Solar")
	a.ExtendInterviewOffers([]string{"Array", "Strategy"})
	if err := a.SelectSystem(pipeline.TrackSingle, "Array"); err != nil {
		t.Fatal(err)
	}
	a.AddTrialOffers([]string{"Array"})

	a.RejectSystems([]string{"Array"})
	if a.SelectedSystem != "" {
		t.Errorf("selectedSystem = %q, want cleared", a.SelectedSystem)
	}
	if a.TrialOffer("Array") != nil {
		t.Error("trial offer of the rejecting system should be removed")
	}
}

func TestRejectSystems_AcceptedStaysAccepted(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery"})
	if err := a.Accept(); err != nil {
		t.Fatal(err)
	}
	if _, full := a.RejectSystems([]string{"Battery"}); full {
		t.Error("accepted application must not flip to REJECTED")
	}
}

// ── Trial offers and decisions ─────────────────────────────────────────────

func TestRespondToTrialOffer_Once(t *testing.T) {
	a := submitted("Electric")
	a.AddTrialOffers([]string{"Battery"})
	if a.Status != pipeline.StatusTrial {
		t.Errorf("status = %s, want TRIAL", a.Status)
	}
	if err := a.RespondToTrialOffer("Battery", false, "schedule clash"); err != nil {
		t.Fatal(err)
	}
	if got := a.TrialOffer("Battery"); got.Accepted == nil || *got.Accepted || got.RejectionReason != "schedule clash" {
		t.Errorf("trial offer = %+v", got)
	}
	if err := a.RespondToTrialOffer("Battery", true, ""); !pipeline.IsValidation(err) {
		t.Errorf("second response: err = %v, want ValidationError", err)
	}
	if err := a.RespondToTrialOffer("Powertrain", true, ""); !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("unknown offer: err = %v, want ErrNotFound", err)
	}
}

func TestDecisions(t *testing.T) {
	cases := []struct {
		from    pipeline.Status
		apply   func(*pipeline.Application) error
		want    pipeline.Status
		wantErr bool
	}{
		{pipeline.StatusTrial, (*pipeline.Application).Accept, pipeline.StatusAccepted, false},
		{pipeline.StatusInterview, (*pipeline.Application).Waitlist, pipeline.StatusWaitlisted, false},
		{pipeline.StatusWaitlisted, (*pipeline.Application).Accept, pipeline.StatusAccepted, false},
		{pipeline.StatusWaitlisted, (*pipeline.Application).Waitlist, pipeline.StatusWaitlisted, true},
		{pipeline.StatusAccepted, (*pipeline.Application).Waitlist, pipeline.StatusAccepted, true},
		{pipeline.StatusRejected, (*pipeline.Application).Accept, pipeline.StatusRejected, true},
		{pipeline.StatusSubmitted, (*pipeline.Application).Accept, pipeline.StatusSubmitted, true},
	}
	for _, c := range cases {
		a := submitted("Electric")
		a.Status = c.from
		err := c.apply(a)
		if (err != nil) != c.wantErr {
			t.Errorf("from %s: err = %v, wantErr %v", c.from, err, c.wantErr)
		}
		if a.Status != c.want {
			t.Errorf("from %s: status = %s, want %s", c.from, a.Status, c.want)
		}
	}
}

// ── System selection ───────────────────────────────────────────────────────

func TestNeedsSystemSelection_TwoSystemTeam(t *testing.T) {
	a := submitted("Solar")
	a.ExtendInterviewOffers([]string{"Array", "Strategy"})

	if !a.NeedsSystemSelection(pipeline.TrackSingle) {
		t.Fatal("two pending offers on a single-track team need a selection")
	}
	if err := a.CheckBiddable(pipeline.TrackSingle, "Array"); !pipeline.IsValidation(err) {
		t.Errorf("booking before selection: err = %v, want ValidationError", err)
	}

	if err := a.SelectSystem(pipeline.TrackSingle, "Strategy"); err != nil {
		t.Fatal(err)
	}
	if a.NeedsSystemSelection(pipeline.TrackSingle) {
		t.Error("selection should satisfy needsSystemSelection")
	}
	if err := a.CheckBiddable(pipeline.TrackSingle, "Strategy"); err != nil {
		t.Errorf("selected offer should be biddable: %v", err)
	}
	if err := a.CheckBiddable(pipeline.TrackSingle, "Array"); err == nil {
		t.Error("unselected offer should not be biddable")
	}

	// Reselection before booking.
	if err := a.SelectSystem(pipeline.TrackSingle, "Array"); err != nil {
		t.Errorf("reselection: %v", err)
	}
}

func TestSelectSystem_Rules(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery", "Powertrain"})
	if err := a.SelectSystem(pipeline.TrackIndependent, "Battery"); !pipeline.IsValidation(err) {
		t.Errorf("independent track: err = %v, want ValidationError", err)
	}
	if a.NeedsSystemSelection(pipeline.TrackIndependent) {
		t.Error("independent tracks never need a selection")
	}

	single := submitted("Solar")
	single.ExtendInterviewOffers([]string{"Array"})
	if err := single.SelectSystem(pipeline.TrackSingle, "Array"); !pipeline.IsValidation(err) {
		t.Errorf("one pending offer: err = %v, want ValidationError", err)
	}
}

func TestSelectSystem_LockedOnceBooked(t *testing.T) {
	a := submitted("Solar")
	a.ExtendInterviewOffers([]string{"Array", "Strategy"})
	a.SelectSystem(pipeline.TrackSingle, "Array")
	start := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	if err := a.Claim("Array", start, start.Add(30*time.Minute), start); err != nil {
		t.Fatal(err)
	}
	if err := a.SelectSystem(pipeline.TrackSingle, "Strategy"); err == nil {
		t.Error("selection must be locked while a booking is held")
	}
	if err := a.CheckBiddable(pipeline.TrackSingle, "Strategy"); err == nil {
		t.Error("second track must not be biddable while a booking is held")
	}
}

// ── Booking lifecycle ──────────────────────────────────────────────────────

func TestBookingLifecycle(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery"})
	start := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	if err := a.Claim("Battery", start, end, start); err != nil {
		t.Fatal(err)
	}
	if err := a.Claim("Battery", start, end, start); !errors.Is(err, pipeline.ErrConflict) {
		t.Errorf("double claim: err = %v, want ErrConflict", err)
	}
	if err := a.ConfirmBooking("Battery", start, end, "evt-1"); err != nil {
		t.Fatal(err)
	}
	if got := offerStatus(t, a, "Battery"); got != pipeline.OfferScheduled {
		t.Errorf("status = %s, want SCHEDULED", got)
	}

	if _, err := a.CancelBooking("Battery", "sick"); err != nil {
		t.Fatal(err)
	}
	o := a.InterviewOffer("Battery")
	if o.Status != pipeline.OfferCancelled || o.CancelReason != "sick" {
		t.Errorf("offer = %+v, want CANCELLED with reason", o)
	}

	// Reschedule re-entry.
	later := start.Add(24 * time.Hour)
	if err := a.Claim("Battery", later, later.Add(30*time.Minute), start); err != nil {
		t.Fatalf("reschedule claim: %v", err)
	}
	if o := a.InterviewOffer("Battery"); o.CancelReason != "" || o.CalendarEventID != "" {
		t.Errorf("re-entry should clear cancellation detail: %+v", o)
	}
}

func TestCancelBooking_PendingIsValidationError(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery"})
	if _, err := a.CancelBooking("Battery", "changed mind"); !pipeline.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
	if got := offerStatus(t, a, "Battery"); got != pipeline.OfferPending {
		t.Errorf("status = %s, want PENDING unchanged", got)
	}
}

func TestCancelBooking_DropsEventID(t *testing.T) {
	for _, cancel := range map[string]func(a *pipeline.Application) error{
		"cancel": func(a *pipeline.Application) error {
			_, err := a.CancelBooking("Battery", "exam")
			return err
		},
		"outcome": func(a *pipeline.Application) error {
			_, err := a.RecordOutcome("Battery", pipeline.OfferCancelled, "exam")
			return err
		},
	} {
		a := submitted("Electric")
		a.ExtendInterviewOffers([]string{"Battery"})
		start := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
		a.Claim("Battery", start, start.Add(30*time.Minute), start)
		if err := a.ConfirmBooking("Battery", start, start.Add(30*time.Minute), "evt"); err != nil {
			t.Fatal(err)
		}
		if err := cancel(a); err != nil {
			t.Fatal(err)
		}
		o := a.InterviewOffer("Battery")
		if o.Status != pipeline.OfferCancelled || o.CancelReason != "exam" || o.CalendarEventID != "" {
			t.Errorf("offer = %+v, want CANCELLED with reason and no event id", o)
		}
	}
}

func TestAbandonClaim(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery"})
	start := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	a.Claim("Battery", start, start.Add(30*time.Minute), start)

	a.AbandonClaim("Battery")
	o := a.InterviewOffer("Battery")
	if o.Status != pipeline.OfferPending || o.ScheduledAt != nil || o.ClaimedAt != nil {
		t.Errorf("offer = %+v, want clean PENDING", o)
	}
	if err := a.ConfirmBooking("Battery", start, start.Add(30*time.Minute), "evt"); !errors.Is(err, pipeline.ErrConflict) {
		t.Errorf("confirm after abandon: err = %v, want ErrConflict", err)
	}
}

func TestRecordOutcome(t *testing.T) {
	a := submitted("Electric")
	a.ExtendInterviewOffers([]string{"Battery"})
	if _, err := a.RecordOutcome("Battery", pipeline.OfferCompleted, ""); !pipeline.IsValidation(err) {
		t.Errorf("outcome on PENDING: err = %v, want ValidationError", err)
	}

	start := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	a.Claim("Battery", start, start.Add(30*time.Minute), start)
	a.ConfirmBooking("Battery", start, start.Add(30*time.Minute), "evt")

	if _, err := a.RecordOutcome("Battery", pipeline.OfferScheduling, ""); !pipeline.IsValidation(err) {
		t.Errorf("non-outcome status: err = %v, want ValidationError", err)
	}
	if _, err := a.RecordOutcome("Battery", pipeline.OfferNoShow, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := a.RecordOutcome("Battery", pipeline.OfferCompleted, ""); err == nil {
		t.Error("NO_SHOW is terminal")
	}
}

// ── SystemSet ──────────────────────────────────────────────────────────────

func TestSystemSet_JSONSorted(t *testing.T) {
	s := pipeline.NewSystemSet("Powertrain", "Battery", "Battery")
	raw, err := s.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `["Battery","Powertrain"]` {
		t.Errorf("MarshalJSON = %s", raw)
	}
	var back pipeline.SystemSet
	if err := back.UnmarshalJSON([]byte(`["Engine","Engine"]`)); err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || !back.Has("Engine") {
		t.Errorf("UnmarshalJSON = %v", back)
	}
}
