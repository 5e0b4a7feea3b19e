package pipeline

import "fmt"

// Phase is the global recruiting step. It only ever moves forward.
type Phase string

const (
	PhaseOpen                 Phase = "OPEN"
	PhaseReviewing            Phase = "REVIEWING"
	PhaseReleaseInterviews    Phase = "RELEASE_INTERVIEWS"
	PhaseInterviewing         Phase = "INTERVIEWING"
	PhaseReleaseTrial         Phase = "RELEASE_TRIAL"
	PhaseTrialWorkday         Phase = "TRIAL_WORKDAY"
	PhaseReleaseDecisionsDay1 Phase = "RELEASE_DECISIONS_DAY1"
	PhaseReleaseDecisionsDay2 Phase = "RELEASE_DECISIONS_DAY2"
	PhaseReleaseDecisionsDay3 Phase = "RELEASE_DECISIONS_DAY3"
)

var phaseOrder = []Phase{
	PhaseOpen,
	PhaseReviewing,
	PhaseReleaseInterviews,
	PhaseInterviewing,
	PhaseReleaseTrial,
	PhaseTrialWorkday,
	PhaseReleaseDecisionsDay1,
	PhaseReleaseDecisionsDay2,
	PhaseReleaseDecisionsDay3,
}

// Phases returns the phases in order.
func Phases() []Phase { return append([]Phase(nil), phaseOrder...) }

// ParsePhase converts a raw string to a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if p.Index() < 0 {
		return "", fmt.Errorf("unknown recruiting phase %q", s)
	}
	return p, nil
}

// Index is the position of p in the phase sequence, or -1 if unknown.
func (p Phase) Index() int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// AtLeast reports whether p has reached q. An unknown p never has.
func (p Phase) AtLeast(q Phase) bool {
	i := p.Index()
	return i >= 0 && i >= q.Index()
}

// ─── Phase Gate ──────────────────────────────────────────────────────────────

// ProjectStatus is the status of app as viewer may see it during phase.
func ProjectStatus(app *Application, phase Phase, viewer Actor) Status {
	switch viewer.Role.Scope() {
	case ScopeNone:
		return ApplicantStatus(app.Status, phase)
	case ScopeSystem:
		return systemStatus(app, viewer.System)
	}
	return app.Status
}

// systemStatus never shows REJECTED to a system that has not rejected the
// applicant itself.
func systemStatus(app *Application, system string) Status {
	if app.RejectedBySystems.Has(system) {
		return StatusRejected
	}
	if app.Status != StatusRejected {
		return app.Status
	}
	if t := app.TrialOffer(system); t != nil && t.active() {
		return StatusTrial
	}
	if o := app.InterviewOffer(system); o != nil && o.Status != OfferCancelled {
		return StatusInterview
	}
	return StatusSubmitted
}

// ApplicantStatus masks raw for the applicant's own view. Masking is
// monotonic: a later phase never hides what an earlier one showed.
func ApplicantStatus(raw Status, phase Phase) Status {
	switch {
	case !phase.AtLeast(PhaseReleaseInterviews):
		if stage(raw) > stage(StatusSubmitted) || raw == StatusRejected {
			return StatusSubmitted
		}
	case !phase.AtLeast(PhaseReleaseTrial):
		if stage(raw) > stage(StatusInterview) {
			return StatusInterview
		}
	case !phase.AtLeast(PhaseReleaseDecisionsDay1):
		if raw == StatusAccepted || raw == StatusWaitlisted {
			return StatusTrial
		}
	}
	return raw
}

// View is an application as returned to one viewer.
type View struct {
	Application          *Application `json:"application"`
	DisplayStatus        Status       `json:"displayStatus"`
	NeedsSystemSelection bool         `json:"needsSystemSelection"`
	Phase                Phase        `json:"phase"`
}

// NewView projects app for viewer. Applicants additionally lose offer detail
// not yet released in phase.
func NewView(app *Application, team Team, phase Phase, viewer Actor) *View {
	a := app.Clone()
	if viewer.Role.Scope() == ScopeNone {
		if !phase.AtLeast(PhaseReleaseInterviews) {
			a.InterviewOffers = []InterviewOffer{}
			a.RejectedBySystems = SystemSet{}
			a.SelectedSystem = ""
		}
		if !phase.AtLeast(PhaseReleaseTrial) {
			a.TrialOffers = []TrialOffer{}
		}
	}
	a.Status = ProjectStatus(app, phase, viewer)
	return &View{
		Application:          a,
		DisplayStatus:        a.Status,
		NeedsSystemSelection: a.NeedsSystemSelection(team.TrackPolicy()),
		Phase:                phase,
	}
}
