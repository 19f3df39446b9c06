package policy

import (
	"fmt"
)

// AuthMode controls whether a caller must be authenticated.
type AuthMode int

const (
	// AuthUnspecified means no mode was declared at this level.
	// An unspecified mode inherits from the service default; if neither
	// level declares a mode, resolution falls back to AuthRequired.
	AuthUnspecified AuthMode = iota

	// AuthPublic allows unauthenticated callers.
	AuthPublic

	// AuthRequired rejects calls without a valid identity.
	AuthRequired
)

func (m AuthMode) String() string {
	switch m {
	case AuthPublic:
		return "public"
	case AuthRequired:
		return "required"
	default:
		return "unspecified"
	}
}

// AuthRule declares authentication requirements and an optional rate rule.
// It may be attached to a service (default) or a method (override).
type AuthRule struct {
	// Mode is the required authentication mode.
	Mode AuthMode

	// Rate is an optional rate-limit rule for calls governed by this rule.
	Rate *RateRule
}

// RuleSet is a conjunctive group of required roles and permissions.
// A caller matches a RuleSet only if it holds every listed role AND every
// listed permission.
type RuleSet struct {
	// Roles are the role names the caller must hold, all of them.
	Roles []string

	// Permissions are the permission strings the caller must hold, all of them.
	Permissions []string
}

// AccessRule is a disjunction of RuleSets: access is granted if ANY RuleSet
// matches. An AccessRule with zero RuleSets imposes no restriction beyond
// the AuthRule.
type AccessRule struct {
	// RuleSets are the alternative requirement groups.
	RuleSets []RuleSet
}

// Empty reports whether the rule imposes no restriction.
func (a *AccessRule) Empty() bool {
	return a == nil || len(a.RuleSets) == 0
}

// RateKey selects what a rate-limit bucket is keyed by.
type RateKey int

const (
	// KeyIP buckets by client IP address.
	KeyIP RateKey = iota

	// KeyUser buckets by authenticated subject.
	KeyUser

	// KeyAPIKey buckets by the caller's API key.
	KeyAPIKey

	// KeyGlobal uses a single bucket shared by all callers of the rule.
	KeyGlobal
)

func (k RateKey) String() string {
	switch k {
	case KeyIP:
		return "ip"
	case KeyUser:
		return "user"
	case KeyAPIKey:
		return "api_key"
	case KeyGlobal:
		return "global"
	default:
		return fmt.Sprintf("ratekey(%d)", int(k))
	}
}

// RequiresIdentity reports whether the key can only be evaluated after
// authentication. IP and GLOBAL keys are evaluated pre-auth; USER and
// API_KEY keys are evaluated post-auth.
func (k RateKey) RequiresIdentity() bool {
	return k == KeyUser || k == KeyAPIKey
}

func (k RateKey) valid() bool {
	return k >= KeyIP && k <= KeyGlobal
}

// AlgorithmKind tags a rate-limit algorithm variant.
type AlgorithmKind int

const (
	// AlgorithmLeakyBucket is a continuously refilled token pool.
	AlgorithmLeakyBucket AlgorithmKind = iota
)

func (k AlgorithmKind) String() string {
	switch k {
	case AlgorithmLeakyBucket:
		return "leaky_bucket"
	default:
		return fmt.Sprintf("algorithm(%d)", int(k))
	}
}

// Algorithm is the kind-tagged rate-limit algorithm declaration. Exactly
// the parameter struct matching Kind must be set; adding an algorithm means
// adding a kind, a parameter struct, and a dispatch arm, nothing open-ended.
type Algorithm struct {
	// Kind selects the variant.
	Kind AlgorithmKind

	// LeakyBucket holds parameters when Kind is AlgorithmLeakyBucket.
	LeakyBucket *LeakyBucket
}

// Validate checks that the declaration is internally consistent.
func (a Algorithm) Validate() error {
	switch a.Kind {
	case AlgorithmLeakyBucket:
		if a.LeakyBucket == nil {
			return fmt.Errorf("policy: leaky_bucket algorithm declared without parameters")
		}
		return a.LeakyBucket.Validate()
	default:
		return fmt.Errorf("policy: unknown rate-limit algorithm kind %d", int(a.Kind))
	}
}

// LeakyBucket parameterizes the leaky-bucket algorithm: a pool of at most
// BurstCapacity tokens refilled continuously at
// AllowedRequests/TimeWindowSeconds tokens per second.
type LeakyBucket struct {
	// BurstCapacity is the maximum token pool size.
	BurstCapacity uint

	// AllowedRequests is the sustained number of requests per window.
	AllowedRequests uint

	// TimeWindowSeconds is the window length in seconds.
	TimeWindowSeconds uint

	// RateRequests is a deprecated alias for AllowedRequests, accepted from
	// older schema drafts. Used only when AllowedRequests is zero.
	//
	// Deprecated: set AllowedRequests.
	RateRequests uint

	// RateSeconds is a deprecated alias for TimeWindowSeconds, accepted from
	// older schema drafts. Used only when TimeWindowSeconds is zero.
	//
	// Deprecated: set TimeWindowSeconds.
	RateSeconds uint
}

// normalized returns a copy with deprecated aliases folded into the
// canonical fields.
func (b LeakyBucket) normalized() LeakyBucket {
	if b.AllowedRequests == 0 {
		b.AllowedRequests = b.RateRequests
	}
	if b.TimeWindowSeconds == 0 {
		b.TimeWindowSeconds = b.RateSeconds
	}
	b.RateRequests = 0
	b.RateSeconds = 0
	return b
}

// Validate checks the declared invariants:
// burst_capacity >= allowed_requests >= 1 and time_window_seconds >= 1.
func (b *LeakyBucket) Validate() error {
	n := b.normalized()
	if n.AllowedRequests < 1 {
		return fmt.Errorf("policy: leaky bucket allowed_requests must be >= 1, got %d", n.AllowedRequests)
	}
	if n.TimeWindowSeconds < 1 {
		return fmt.Errorf("policy: leaky bucket time_window_seconds must be >= 1, got %d", n.TimeWindowSeconds)
	}
	if n.BurstCapacity < n.AllowedRequests {
		return fmt.Errorf("policy: leaky bucket burst_capacity %d must be >= allowed_requests %d",
			n.BurstCapacity, n.AllowedRequests)
	}
	return nil
}

// Requests returns the canonical sustained request count.
func (b *LeakyBucket) Requests() uint {
	return b.normalized().AllowedRequests
}

// WindowSeconds returns the canonical window length.
func (b *LeakyBucket) WindowSeconds() uint {
	return b.normalized().TimeWindowSeconds
}

// DrainRate returns the refill rate in tokens per second.
func (b *LeakyBucket) DrainRate() float64 {
	n := b.normalized()
	return float64(n.AllowedRequests) / float64(n.TimeWindowSeconds)
}

// RateRule declares a rate limit keyed by IP, user, API key, or a single
// shared bucket, with roles exempt from limiting.
type RateRule struct {
	// Key selects the bucket key kind.
	Key RateKey

	// BypassRoles exempt authenticated callers holding any listed role.
	// Bypass never applies to unauthenticated callers.
	BypassRoles []string

	// Algorithm is the limiting algorithm and its parameters.
	Algorithm Algorithm
}

// Validate checks the rule's key and algorithm declaration.
func (r *RateRule) Validate() error {
	if !r.Key.valid() {
		return fmt.Errorf("policy: unknown rate key %d", int(r.Key))
	}
	return r.Algorithm.Validate()
}

// PrivacyMode governs how a field value is exposed to a caller.
type PrivacyMode int

const (
	// Visible exposes the value as-is.
	Visible PrivacyMode = iota

	// Omit removes the field from the response entirely.
	Omit

	// Redact replaces the value with a fixed placeholder for its kind.
	Redact
)

func (m PrivacyMode) String() string {
	switch m {
	case Visible:
		return "visible"
	case Omit:
		return "omit"
	case Redact:
		return "redact"
	default:
		return fmt.Sprintf("privacymode(%d)", int(m))
	}
}

// PrivacyRule declares per-field visibility. Callers holding any role in
// VisibleToRoles see the real value regardless of Mode.
type PrivacyRule struct {
	// Mode is the visibility mode for callers without an exempting role.
	Mode PrivacyMode

	// VisibleToRoles lists roles that bypass Omit/Redact for this field.
	VisibleToRoles []string
}

// FieldKind is the semantic type of a message field, used to pick a stable
// redaction placeholder.
type FieldKind int

const (
	// KindString fields redact to the empty string.
	KindString FieldKind = iota

	// KindNumber fields redact to zero.
	KindNumber

	// KindBool fields redact to false.
	KindBool

	// KindBytes fields redact to nil.
	KindBytes

	// KindMessage fields hold a nested message; redaction omits them since
	// a structured value has no meaningful placeholder.
	KindMessage
)

// FieldRule describes one field of a message type together with its
// optional privacy rule.
type FieldRule struct {
	// Name is the field name as it appears in decoded messages.
	Name string

	// Kind is the field's semantic type.
	Kind FieldKind

	// Message names the nested message type when Kind is KindMessage.
	Message string

	// Privacy is the declared privacy rule; nil means fully visible.
	Privacy *PrivacyRule
}
