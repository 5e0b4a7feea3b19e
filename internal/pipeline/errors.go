package pipeline

import (
	"errors"
	"fmt"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned for an unknown application, applicant or offer.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when the authorization policy leaves
	// nothing the actor may act upon.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConflict means the caller raced another request and must re-read.
	ErrConflict = errors.New("conflict")
	// ErrMisconfigured covers incomplete staff profiles and unusable slot
	// configuration. Applicant surfaces show it as "check back later".
	ErrMisconfigured = errors.New("misconfigured")
)

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// Conflictf builds an ErrConflict with detail.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Misconfiguredf builds an ErrMisconfigured with detail.
func Misconfiguredf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMisconfigured, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound with detail.
func NotFoundf(format string, args ...any) error { return notFound(format, args...) }

// Invalidf builds a *ValidationError.
func Invalidf(format string, args ...any) error { return invalid(format, args...) }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
