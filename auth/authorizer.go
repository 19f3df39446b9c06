package auth

import (
	"context"
	"fmt"

	"github.com/jonwraymond/policykit/policy"
)

// Authorizer decides whether an identity satisfies a declared access rule.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Authorize returns nil if access is granted, or an error
//   (typically *AuthzError) if denied.
type Authorizer interface {
	// Authorize checks the identity against the rule.
	Authorize(ctx context.Context, id *Identity, rule *policy.AccessRule) error

	// Name returns a unique identifier for this authorizer.
	Name() string
}

// AuthzError represents an authorization failure.
type AuthzError struct {
	// Subject is the identity that was denied, empty if unauthenticated.
	Subject string

	// Reason explains why access was denied.
	Reason string

	// Cause is the underlying error if any.
	Cause error
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("authorization denied: subject=%q reason=%q", e.Subject, e.Reason)
}

// Unwrap returns the cause error for errors.Is/As support.
func (e *AuthzError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// RuleSetAuthorizer is the default authorizer. A rule with zero rule sets
// grants access vacuously; otherwise access is granted iff at least one
// rule set's roles AND permissions are fully contained in the identity's.
// Deterministic, stateless, pure set containment.
type RuleSetAuthorizer struct{}

// NewRuleSetAuthorizer creates the default rule-set authorizer.
func NewRuleSetAuthorizer() RuleSetAuthorizer {
	return RuleSetAuthorizer{}
}

// Name returns "ruleset".
func (RuleSetAuthorizer) Name() string {
	return "ruleset"
}

// Authorize evaluates the access rule against the identity.
func (RuleSetAuthorizer) Authorize(_ context.Context, id *Identity, rule *policy.AccessRule) error {
	if rule.Empty() {
		return nil
	}
	if id == nil {
		return &AuthzError{Reason: "no identity provided"}
	}
	for _, set := range rule.RuleSets {
		if id.HasAllRoles(set.Roles) && id.HasAllPermissions(set.Permissions) {
			return nil
		}
	}
	return &AuthzError{
		Subject: id.Subject,
		Reason:  "no rule set matches the caller's roles and permissions",
	}
}

// AllowAllAuthorizer permits every request. Intended for tests and for
// integrators who enforce access outside this library.
type AllowAllAuthorizer struct{}

// Authorize always returns nil (permitted).
func (AllowAllAuthorizer) Authorize(_ context.Context, _ *Identity, _ *policy.AccessRule) error {
	return nil
}

// Name returns "allow_all".
func (AllowAllAuthorizer) Name() string {
	return "allow_all"
}

// AuthorizerFunc is an adapter to allow use of ordinary functions as
// Authorizers.
type AuthorizerFunc func(ctx context.Context, id *Identity, rule *policy.AccessRule) error

// Authorize calls the function.
func (f AuthorizerFunc) Authorize(ctx context.Context, id *Identity, rule *policy.AccessRule) error {
	return f(ctx, id, rule)
}

// Name returns "func" for function-based authorizers.
func (f AuthorizerFunc) Name() string {
	return "func"
}

// Ensure implementations satisfy Authorizer
var (
	_ Authorizer = RuleSetAuthorizer{}
	_ Authorizer = AllowAllAuthorizer{}
	_ Authorizer = AuthorizerFunc(nil)
)
