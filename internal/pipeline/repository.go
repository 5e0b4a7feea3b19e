package pipeline

import (
	"context"
	"time"
)

// Repository is the Offer Store. UpdateApplication is atomic: the mutation
// runs against the latest stored document and is persisted only when it
// returns nil.
type Repository interface {
	CreateApplicant(ctx context.Context, a *Applicant) error
	GetApplicant(ctx context.Context, id string) (*Applicant, error)

	CreateApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id string) (*Application, error)
	ListApplications(ctx context.Context, team string) ([]*Application, error)
	UpdateApplication(ctx context.Context, id string, mutate func(*Application) error) (*Application, error)

	// ListBookings returns SCHEDULING and SCHEDULED offers of (team, system)
	// overlapping [from, to).
	ListBookings(ctx context.Context, team, system string, from, to time.Time) ([]Booking, error)
	// ListStaleClaims returns SCHEDULING offers claimed before the cutoff.
	ListStaleClaims(ctx context.Context, before time.Time) ([]Booking, error)
}

// PhaseStore holds the recruiting phase. It is read on every request.
type PhaseStore interface {
	GetPhase(ctx context.Context) (Phase, error)
	SetPhase(ctx context.Context, p Phase) error
}

// Event types published after successful mutations.
const (
	EventApplicationUpdated = "EVENT_APPLICATION_UPDATED"
	EventInterviewScheduled = "EVENT_INTERVIEW_SCHEDULED"
	EventInterviewCancelled = "EVENT_INTERVIEW_CANCELLED"
)

// Event is a domain notification. Fields are flat strings so consumers can
// decode without sharing these types.
type Event struct {
	Type          string `json:"type"`
	ApplicationID string `json:"applicationId"`
	ApplicantID   string `json:"applicantId,omitempty"`
	Team          string `json:"team"`
	System        string `json:"system,omitempty"`
	Status        string `json:"status,omitempty"`
	ActorID       string `json:"actorId,omitempty"`
	At            string `json:"at"`
}

// Publisher delivers events. Errors are logged by callers and never fail a
// mutation that already succeeded.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// OfferRemovalHook is told about interview offers dropped by a rejection so
// their calendar events can be released.
type OfferRemovalHook interface {
	OffersRemoved(ctx context.Context, app *Application, removed []InterviewOffer)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
