package auth

import "context"

// Authenticator validates credentials and returns a caller identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines; credential
//   lookups may block on I/O.
// - Errors: Authenticate returns (nil, error) for internal errors;
//   returns (Result, nil) for auth outcomes (check result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if this authenticator can handle the request.
	Supports(ctx context.Context, req *Request) bool

	// Authenticate validates credentials and returns a result.
	// Returns (result, nil) for success/failure, (nil, error) for internal errors.
	Authenticate(ctx context.Context, req *Request) (*Result, error)
}

// Request carries the transport metadata an authenticator inspects.
type Request struct {
	// Metadata contains transport metadata (HTTP headers, gRPC metadata).
	Metadata map[string][]string

	// Service and Method identify the target call (optional, for context).
	Service string
	Method  string
}

// Get returns the first value for a metadata key, or empty string.
func (r *Request) Get(key string) string {
	if r.Metadata == nil {
		return ""
	}
	values := r.Metadata[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Result is the outcome of an authentication attempt.
type Result struct {
	// Authenticated is true if authentication succeeded.
	Authenticated bool

	// Identity is the authenticated identity (only if Authenticated=true).
	Identity *Identity

	// Err is the authentication error (only if Authenticated=false).
	Err error

	// Method indicates which authenticator method was used.
	Method Method
}

// Success creates a successful authentication result.
func Success(identity *Identity) *Result {
	return &Result{
		Authenticated: true,
		Identity:      identity,
		Method:        identity.Method,
	}
}

// Failure creates a failed authentication result.
func Failure(err error, method Method) *Result {
	return &Result{
		Authenticated: false,
		Err:           err,
		Method:        method,
	}
}

// AuthenticatorFunc is an adapter to allow use of ordinary functions as
// Authenticators.
type AuthenticatorFunc struct {
	name     string
	supports func(ctx context.Context, req *Request) bool
	auth     func(ctx context.Context, req *Request) (*Result, error)
}

// NewAuthenticatorFunc creates an AuthenticatorFunc.
func NewAuthenticatorFunc(
	name string,
	supports func(ctx context.Context, req *Request) bool,
	auth func(ctx context.Context, req *Request) (*Result, error),
) *AuthenticatorFunc {
	return &AuthenticatorFunc{
		name:     name,
		supports: supports,
		auth:     auth,
	}
}

// Name returns the authenticator name.
func (f *AuthenticatorFunc) Name() string {
	return f.name
}

// Supports returns true if this authenticator can handle the request.
func (f *AuthenticatorFunc) Supports(ctx context.Context, req *Request) bool {
	return f.supports(ctx, req)
}

// Authenticate validates credentials.
func (f *AuthenticatorFunc) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	return f.auth(ctx, req)
}

// Ensure AuthenticatorFunc implements Authenticator
var _ Authenticator = (*AuthenticatorFunc)(nil)
