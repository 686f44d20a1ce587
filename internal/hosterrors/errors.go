// Package hosterrors defines the error taxonomy shared by the account,
// limit, and hosting services so HTTP handlers can map failures uniformly.
package hosterrors

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches nothing, deliberately
// without detail (a recovery phrase miss must not hint at near-matches).
var ErrNotFound = errors.New("not found")

// ValidationError marks malformed input rejected before any persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LimitExceededError is returned when a device or account ceiling is hit.
// Current and Max are surfaced so the UI can explain the denial.
type LimitExceededError struct {
	Resource string
	Current  int
	Max      int
}

func (e LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit reached (%d of %d)", e.Resource, e.Current, e.Max)
}

// ConflictError marks a uniqueness collision on concurrent create.
// The caller should retry with a different identifier.
type ConflictError struct {
	Resource string
	Value    string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s already taken: %s", e.Resource, e.Value)
}

// UpstreamUnavailableError wraps a failed call to the hosting panel or
// another external dependency, distinct from semantic errors.
type UpstreamUnavailableError struct {
	Upstream  string
	Err       error
	Retryable bool
}

func (e UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Upstream, e.Err)
}

func (e UpstreamUnavailableError) Unwrap() error { return e.Err }

// IsLimitExceeded reports whether err is a LimitExceededError.
func IsLimitExceeded(err error) bool {
	var le LimitExceededError
	return errors.As(err, &le)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
