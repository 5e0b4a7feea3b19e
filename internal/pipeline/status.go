// Package pipeline defines the recruiting pipeline: applications, the
// per-system offer state machine, phase-gated visibility and the
// authorization policy for staff actions.
//
// Application status graph (coarse projection):
//
//	IN_PROGRESS ──► SUBMITTED ──► INTERVIEW ──► TRIAL ──► ACCEPTED
//	                    │             │           │   └──► WAITLISTED ──► ACCEPTED | REJECTED
//	                    └─────────────┴───────────┴──► REJECTED
//
// Interview offer graph:
//
//	PENDING ──► SCHEDULING ──► SCHEDULED ──► COMPLETED | NO_SHOW | CANCELLED
//	   ▲                                                             │
//	   └─────────────────────────────────────────────────────────────┘
//
// ACCEPTED and REJECTED are terminal for decisions. REJECTED is left again
// only when a system extends a fresh interview or trial offer.
package pipeline

import "fmt"

// Status values mirror the application status column in PostgreSQL.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
	StatusInterview  Status = "INTERVIEW"
	StatusTrial      Status = "TRIAL"
	StatusAccepted   Status = "ACCEPTED"
	StatusRejected   Status = "REJECTED"
	StatusWaitlisted Status = "WAITLISTED"
)

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusInProgress, StatusSubmitted, StatusInterview, StatusTrial,
		StatusAccepted, StatusRejected, StatusWaitlisted:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// stage orders statuses by how far through the pipeline they are. REJECTED
// ranks below SUBMITTED so that a new offer can revive the application.
func stage(s Status) int {
	switch s {
	case StatusRejected:
		return 0
	case StatusInProgress:
		return 1
	case StatusSubmitted:
		return 2
	case StatusInterview:
		return 3
	case StatusTrial:
		return 4
	case StatusWaitlisted:
		return 5
	case StatusAccepted:
		return 6
	}
	return -1
}

// IsDecided reports whether the application reached a terminal decision.
func IsDecided(s Status) bool { return s == StatusAccepted || s == StatusRejected }

// OfferStatus is the lifecycle of a single interview offer.
type OfferStatus string

const (
	OfferPending    OfferStatus = "PENDING"
	OfferScheduling OfferStatus = "SCHEDULING"
	OfferScheduled  OfferStatus = "SCHEDULED"
	OfferCancelled  OfferStatus = "CANCELLED"
	OfferCompleted  OfferStatus = "COMPLETED"
	OfferNoShow     OfferStatus = "NO_SHOW"
)

// validOfferTransitions lists every allowed (from → to) pair.
var validOfferTransitions = map[OfferStatus][]OfferStatus{
	OfferPending:    {OfferScheduling},
	OfferScheduling: {OfferScheduled},
	OfferScheduled:  {OfferCancelled, OfferCompleted, OfferNoShow},
	OfferCancelled:  {OfferPending}, // reschedule re-entry
	// COMPLETED and NO_SHOW are terminal
}

// ParseOfferStatus converts a raw string to an OfferStatus.
func ParseOfferStatus(s string) (OfferStatus, error) {
	st := OfferStatus(s)
	switch st {
	case OfferPending, OfferScheduling, OfferScheduled, OfferCancelled, OfferCompleted, OfferNoShow:
		return st, nil
	}
	return "", fmt.Errorf("unknown interview offer status %q", s)
}

// IsOfferTransitionAllowed returns true when moving from → to is permitted.
func IsOfferTransitionAllowed(from, to OfferStatus) bool {
	for _, s := range validOfferTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsOutcome reports whether s may be recorded by staff after an interview.
func IsOutcome(s OfferStatus) bool {
	return s == OfferCompleted || s == OfferCancelled || s == OfferNoShow
}

// holdsBooking is true while the offer owns (or is claiming) a calendar slot.
func (s OfferStatus) holdsBooking() bool {
	return s == OfferScheduling || s == OfferScheduled
}
