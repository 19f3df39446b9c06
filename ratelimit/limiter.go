package ratelimit

import (
	"context"
	"fmt"

	"github.com/jonwraymond/policykit/auth"
	"github.com/jonwraymond/policykit/policy"
)

// CheckRequest carries everything needed to evaluate one rate rule against
// one call.
type CheckRequest struct {
	// Scope namespaces the rule's buckets, typically "service/method".
	// Global buckets are singleton per scope, not per process.
	Scope string

	// Rule is the declared rate rule.
	Rule *policy.RateRule

	// Identity is the authenticated caller, nil before authentication.
	Identity *auth.Identity

	// ClientIP is the caller's address, used for IP-keyed rules.
	ClientIP string
}

// Limiter evaluates rate rules against per-key bucket state.
//
// Contract:
// - Concurrency: safe for concurrent use; per-key atomicity is delegated
//   to the Store.
// - Bypass: an authenticated caller holding a bypass role is admitted
//   before any bucket lookup; bucket state is untouched.
type Limiter struct {
	store Store
}

// NewLimiter creates a limiter over the given store. A nil store gets an
// in-memory default.
func NewLimiter(store Store) *Limiter {
	if store == nil {
		store = NewMemoryStore(MemoryStoreConfig{})
	}
	return &Limiter{store: store}
}

// Store returns the backing store, mainly for introspection in tests.
func (l *Limiter) Store() Store {
	return l.store
}

// Allow evaluates the rule for one request.
//
// Rules whose key requires an identity (user, API key) admit trivially
// when no identity is present; the pipeline evaluates them only after
// authentication, so this arises only for public methods whose callers
// carry no credentials to key by.
func (l *Limiter) Allow(ctx context.Context, req CheckRequest) (Decision, error) {
	rule := req.Rule
	if rule == nil {
		return Decision{Admit: true}, nil
	}

	// Bypass check precedes any bucket access.
	if req.Identity != nil && req.Identity.HasAnyRole(rule.BypassRoles) {
		return Decision{Admit: true, Bypassed: true}, nil
	}

	if rule.Key.RequiresIdentity() && req.Identity == nil {
		return Decision{Admit: true}, nil
	}

	key, err := l.bucketKey(req)
	if err != nil {
		return Decision{}, err
	}

	switch rule.Algorithm.Kind {
	case policy.AlgorithmLeakyBucket:
		return l.store.Take(ctx, key, rule.Algorithm.LeakyBucket)
	default:
		return Decision{}, fmt.Errorf("ratelimit: unsupported algorithm %s", rule.Algorithm.Kind)
	}
}

// bucketKey builds the namespaced bucket key: scope, key kind, and the
// identity value the kind selects.
func (l *Limiter) bucketKey(req CheckRequest) (string, error) {
	kind := req.Rule.Key
	switch kind {
	case policy.KeyGlobal:
		return req.Scope + "|global", nil
	case policy.KeyIP:
		ip := req.ClientIP
		if ip == "" {
			ip = "unknown"
		}
		return req.Scope + "|ip:" + ip, nil
	case policy.KeyUser:
		return req.Scope + "|user:" + req.Identity.Subject, nil
	case policy.KeyAPIKey:
		return req.Scope + "|api_key:" + req.Identity.APIKeyID, nil
	default:
		return "", fmt.Errorf("ratelimit: unknown rate key %s", kind)
	}
}
