package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimitExceeded is matched by every *LimitError via errors.Is.
var ErrRateLimitExceeded = errors.New("ratelimit: rate limit exceeded")

// LimitError reports a rejected request together with the earliest time a
// retry could be admitted.
type LimitError struct {
	// Key is the bucket key that rejected the request.
	Key string

	// RetryAfter is how long until one token will have refilled.
	RetryAfter time.Duration
}

// Error returns the error message.
func (e *LimitError) Error() string {
	return fmt.Sprintf("ratelimit: rate limit exceeded for %q, retry after %s", e.Key, e.RetryAfter)
}

// Is reports whether this error matches the target.
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
