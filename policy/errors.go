package policy

import (
	"errors"
	"fmt"
)

// ErrResolution is matched by every ResolutionError via errors.Is.
var ErrResolution = errors.New("policy: resolution failed")

// ResolutionError reports a malformed or missing descriptor. It is raised
// at registration time, never per request: a service that fails validation
// is not registered at all.
type ResolutionError struct {
	// Service is the service being registered or resolved.
	Service string

	// Method is the offending method, empty for service-level problems.
	Method string

	// Reason explains what is malformed or missing.
	Reason string

	// Cause is the underlying error if any.
	Cause error
}

func (e *ResolutionError) Error() string {
	target := e.Service
	if e.Method != "" {
		target = e.Service + "/" + e.Method
	}
	if e.Cause != nil {
		return fmt.Sprintf("policy: resolve %s: %s: %v", target, e.Reason, e.Cause)
	}
	return fmt.Sprintf("policy: resolve %s: %s", target, e.Reason)
}

// Unwrap returns the cause error for errors.Is/As support.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}
