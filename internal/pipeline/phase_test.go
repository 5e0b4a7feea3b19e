package pipeline_test

import (
	"testing"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
)

func TestParsePhase(t *testing.T) {
	for i, p := range pipeline.Phases() {
		got, err := pipeline.ParsePhase(string(p))
		if err != nil || got != p {
			t.Errorf("ParsePhase(%q) = %q, %v", p, got, err)
		}
		if p.Index() != i {
			t.Errorf("%s.Index() = %d, want %d", p, p.Index(), i)
		}
	}
	if _, err := pipeline.ParsePhase("RELEASE_DECISIONS_DAY4"); err == nil {
		t.Error("unknown phase should fail")
	}
}

// ── Applicant masking ──────────────────────────────────────────────────────

func TestApplicantStatus_Table(t *testing.T) {
	cases := []struct {
		raw   pipeline.Status
		phase pipeline.Phase
		want  pipeline.Status
	}{
		{pipeline.StatusInterview, pipeline.PhaseReviewing, pipeline.StatusSubmitted},
		{pipeline.StatusRejected, pipeline.PhaseReviewing, pipeline.StatusSubmitted},
		{pipeline.StatusInProgress, pipeline.PhaseOpen, pipeline.StatusInProgress},
		{pipeline.StatusInterview, pipeline.PhaseReleaseInterviews, pipeline.StatusInterview},
		{pipeline.StatusRejected, pipeline.PhaseReleaseInterviews, pipeline.StatusRejected},
		{pipeline.StatusTrial, pipeline.PhaseInterviewing, pipeline.StatusInterview},
		{pipeline.StatusAccepted, pipeline.PhaseInterviewing, pipeline.StatusInterview},
		{pipeline.StatusTrial, pipeline.PhaseReleaseTrial, pipeline.StatusTrial},
		{pipeline.StatusAccepted, pipeline.PhaseTrialWorkday, pipeline.StatusTrial},
		{pipeline.StatusWaitlisted, pipeline.PhaseTrialWorkday, pipeline.StatusTrial},
		{pipeline.StatusAccepted, pipeline.PhaseReleaseDecisionsDay1, pipeline.StatusAccepted},
		{pipeline.StatusWaitlisted, pipeline.PhaseReleaseDecisionsDay3, pipeline.StatusWaitlisted},
		{pipeline.StatusAccepted, pipeline.Phase("BOGUS"), pipeline.StatusSubmitted},
	}
	for _, c := range cases {
		if got := pipeline.ApplicantStatus(c.raw, c.phase); got != c.want {
			t.Errorf("ApplicantStatus(%s, %s) = %s, want %s", c.raw, c.phase, got, c.want)
		}
	}
}

// Once a phase reveals a status, every later phase reveals it too.
func TestApplicantStatus_Monotonic(t *testing.T) {
	all := []pipeline.Status{
		pipeline.StatusInProgress, pipeline.StatusSubmitted, pipeline.StatusInterview,
		pipeline.StatusTrial, pipeline.StatusAccepted, pipeline.StatusRejected, pipeline.StatusWaitlisted,
	}
	phases := pipeline.Phases()
	for _, raw := range all {
		revealed := false
		for _, p := range phases {
			shown := pipeline.ApplicantStatus(raw, p) == raw
			if revealed && !shown {
				t.Errorf("%s revealed before %s but hidden again", raw, p)
			}
			revealed = revealed || shown
		}
		if !revealed {
			t.Errorf("%s is never revealed", raw)
		}
	}
}

// ── Staff projection ───────────────────────────────────────────────────────

func TestProjectStatus_SystemScopedViewer(t *testing.T) {
	lead := func(system string) pipeline.Actor {
		return pipeline.Actor{Role: pipeline.RoleSystemLead, Team: "Electric", System: system}
	}
	app := &pipeline.Application{
		Team:              "Electric",
		Status:            pipeline.StatusRejected,
		RejectedBySystems: pipeline.NewSystemSet("Battery"),
		InterviewOffers:   []pipeline.InterviewOffer{{System: "Powertrain", Status: pipeline.OfferCompleted}},
		TrialOffers:       []pipeline.TrialOffer{{System: "Electronics"}},
	}
	phase := pipeline.PhaseReleaseDecisionsDay1

	cases := map[string]pipeline.Status{
		"Battery":     pipeline.StatusRejected,
		"Powertrain":  pipeline.StatusInterview,
		"Electronics": pipeline.StatusTrial,
	}
	for system, want := range cases {
		if got := pipeline.ProjectStatus(app, phase, lead(system)); got != want {
			t.Errorf("viewer %s sees %s, want %s", system, got, want)
		}
	}

	app.InterviewOffers = nil
	app.TrialOffers = nil
	if got := pipeline.ProjectStatus(app, phase, lead("Powertrain")); got != pipeline.StatusSubmitted {
		t.Errorf("viewer without offers sees %s, want SUBMITTED", got)
	}

	app.Status = pipeline.StatusTrial
	if got := pipeline.ProjectStatus(app, phase, lead("Battery")); got != pipeline.StatusRejected {
		t.Errorf("own rejection must win over global status, got %s", got)
	}
}

func TestProjectStatus_PrivilegedSeesRaw(t *testing.T) {
	app := &pipeline.Application{Status: pipeline.StatusRejected, RejectedBySystems: pipeline.NewSystemSet("Battery")}
	for _, role := range []pipeline.Role{pipeline.RoleTeamCaptain, pipeline.RoleAdmin} {
		got := pipeline.ProjectStatus(app, pipeline.PhaseOpen, pipeline.Actor{Role: role, Team: "Electric"})
		if got != pipeline.StatusRejected {
			t.Errorf("%s sees %s, want raw REJECTED", role, got)
		}
	}
}

func TestNewView_MasksOffersForApplicant(t *testing.T) {
	app := &pipeline.Application{
		Team:            "Solar",
		Status:          pipeline.StatusTrial,
		InterviewOffers: []pipeline.InterviewOffer{{System: "Array", Status: pipeline.OfferPending}, {System: "Strategy", Status: pipeline.OfferPending}},
		TrialOffers:     []pipeline.TrialOffer{{System: "Array"}},
	}
	team, _ := pipeline.DefaultCatalog().Team("Solar")
	applicant := pipeline.Actor{Role: pipeline.RoleApplicant}

	v := pipeline.NewView(app, team, pipeline.PhaseReviewing, applicant)
	if len(v.Application.InterviewOffers) != 0 || len(v.Application.TrialOffers) != 0 || v.NeedsSystemSelection {
		t.Errorf("REVIEWING view leaks offers: %+v", v.Application)
	}
	if v.DisplayStatus != pipeline.StatusSubmitted {
		t.Errorf("display = %s, want SUBMITTED", v.DisplayStatus)
	}

	v = pipeline.NewView(app, team, pipeline.PhaseInterviewing, applicant)
	if len(v.Application.InterviewOffers) != 2 || len(v.Application.TrialOffers) != 0 {
		t.Errorf("INTERVIEWING view: %+v", v.Application)
	}
	if !v.NeedsSystemSelection {
		t.Error("two pending offers on a two-system team need a selection")
	}
	if len(app.InterviewOffers) != 2 || app.Status != pipeline.StatusTrial {
		t.Error("NewView must not mutate the stored application")
	}
}
