package pipeline

import (
	"encoding/json"
	"sort"
	"time"
)

// MaxPreferredSystems caps the systems an applicant may rank on one application.
const MaxPreferredSystems = 3

// Applicant is the identity behind one or more applications.
type Applicant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Application is one applicant's record for one team. The offer lists are
// authoritative; Status is a coarse projection of them.
type Application struct {
	ID                string           `json:"id"`
	ApplicantID       string           `json:"applicantId"`
	Team              string           `json:"team"`
	Status            Status           `json:"status"`
	PreferredSystems  []string         `json:"preferredSystems"`
	InterviewOffers   []InterviewOffer `json:"interviewOffers"`
	TrialOffers       []TrialOffer     `json:"trialOffers"`
	RejectedBySystems SystemSet        `json:"rejectedBySystems"`
	SelectedSystem    string           `json:"selectedSystem,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// InterviewOffer is a system's invitation to interview. ScheduledAt and
// ScheduledEndAt are the booking record; there is no separate ledger.
type InterviewOffer struct {
	System          string      `json:"system"`
	Status          OfferStatus `json:"status"`
	ScheduledAt     *time.Time  `json:"scheduledAt,omitempty"`
	ScheduledEndAt  *time.Time  `json:"scheduledEndAt,omitempty"`
	CancelReason    string      `json:"cancelReason,omitempty"`
	CalendarEventID string      `json:"calendarEventId,omitempty"`
	ClaimedAt       *time.Time  `json:"claimedAt,omitempty"`
}

// TrialOffer is a system's invitation to the trial workday. Accepted is nil
// until the applicant responds.
type TrialOffer struct {
	System          string `json:"system"`
	Accepted        *bool  `json:"accepted"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// active reports whether the trial offer is still open or accepted.
func (t TrialOffer) active() bool { return t.Accepted == nil || *t.Accepted }

// Booking is a SCHEDULING or SCHEDULED interval held by some application.
type Booking struct {
	ApplicationID string
	System        string
	Start         time.Time
	End           time.Time
}

// ─── SystemSet ───────────────────────────────────────────────────────────────

// SystemSet is a set of system names. It serializes as a sorted JSON array.
type SystemSet map[string]struct{}

// NewSystemSet builds a set from names, ignoring duplicates.
func NewSystemSet(names ...string) SystemSet {
	s := make(SystemSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership. A nil set is empty.
func (s SystemSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s SystemSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s SystemSet) MarshalJSON() ([]byte, error) { return json.Marshal(s.Sorted()) }

func (s *SystemSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSystemSet(names...)
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// Clone returns a deep copy so callers can mutate without aliasing.
func (a *Application) Clone() *Application {
	c := *a
	c.PreferredSystems = append([]string(nil), a.PreferredSystems...)
	c.InterviewOffers = make([]InterviewOffer, len(a.InterviewOffers))
	for i, o := range a.InterviewOffers {
		o.ScheduledAt = cloneTime(o.ScheduledAt)
		o.ScheduledEndAt = cloneTime(o.ScheduledEndAt)
		o.ClaimedAt = cloneTime(o.ClaimedAt)
		c.InterviewOffers[i] = o
	}
	c.TrialOffers = make([]TrialOffer, len(a.TrialOffers))
	for i, t := range a.TrialOffers {
		if t.Accepted != nil {
			v := *t.Accepted
			t.Accepted = &v
		}
		c.TrialOffers[i] = t
	}
	c.RejectedBySystems = NewSystemSet(a.RejectedBySystems.Sorted()...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// InterviewOffer returns the offer for system, or nil.
func (a *Application) InterviewOffer(system string) *InterviewOffer {
	for i := range a.InterviewOffers {
		if a.InterviewOffers[i].System == system {
			return &a.InterviewOffers[i]
		}
	}
	return nil
}

// TrialOffer returns the trial offer for system, or nil.
func (a *Application) TrialOffer(system string) *TrialOffer {
	for i := range a.TrialOffers {
		if a.TrialOffers[i].System == system {
			return &a.TrialOffers[i]
		}
	}
	return nil
}

// PendingSystems lists systems whose interview offer is PENDING, in offer order.
func (a *Application) PendingSystems() []string {
	var out []string
	for _, o := range a.InterviewOffers {
		if o.Status == OfferPending {
			out = append(out, o.System)
		}
	}
	return out
}

// bookedSystem returns the system of an offer currently holding a booking.
func (a *Application) bookedSystem() (string, bool) {
	for _, o := range a.InterviewOffers {
		if o.Status.holdsBooking() {
			return o.System, true
		}
	}
	return "", false
}
