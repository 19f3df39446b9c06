package pipeline

import (
	"errors"
	"time"

	"github.com/jonwraymond/policykit/auth"
	"github.com/jonwraymond/policykit/ratelimit"
)

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	return errors.Is(err, ratelimit.ErrRateLimitExceeded)
}

// RetryAfter extracts the retry hint from a rate-limit rejection.
// Returns (0, false) for other errors.
func RetryAfter(err error) (time.Duration, bool) {
	var le *ratelimit.LimitError
	if errors.As(err, &le) {
		return le.RetryAfter, true
	}
	return 0, false
}

// IsUnauthenticated reports whether err is an authentication rejection.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, auth.ErrUnauthenticated)
}

// IsForbidden reports whether err is an authorization rejection.
func IsForbidden(err error) bool {
	return errors.Is(err, auth.ErrForbidden)
}
