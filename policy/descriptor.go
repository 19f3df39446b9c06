package policy

// ServiceDescriptor declares the policy surface of one RPC service.
// Produced by the schema toolchain; immutable after registration.
type ServiceDescriptor struct {
	// Name is the fully qualified service name.
	Name string

	// Auth is the service-level default AuthRule, inherited by methods
	// that do not override it.
	Auth *AuthRule

	// Access is the service-level default AccessRule.
	Access *AccessRule

	// Methods are the service's methods.
	Methods []MethodDescriptor
}

// MethodDescriptor declares one method and its policy overrides.
type MethodDescriptor struct {
	// Name is the method name, unique within the service.
	Name string

	// Auth overrides the service AuthRule field by field: an unspecified
	// Mode inherits the service mode, a nil Rate inherits the service rate.
	Auth *AuthRule

	// Access overrides the service AccessRule when non-nil.
	Access *AccessRule

	// Response names the method's response message type. Field privacy is
	// gathered from the registered message descriptors reachable from it.
	Response string
}

// MessageDescriptor declares the fields of one message type. Privacy rules
// attach to message fields directly, independent of which services or
// methods reference the message.
type MessageDescriptor struct {
	// Name is the fully qualified message type name.
	Name string

	// Fields are the message's fields.
	Fields []FieldRule
}

// EffectivePolicy is the fully merged policy for one method. It is computed
// once at registration and shared read-only across calls.
type EffectivePolicy struct {
	// Service and Method identify the call.
	Service string
	Method  string

	// Auth is the resolved mode, never AuthUnspecified: when neither level
	// declares a mode the result is AuthRequired (fail-safe).
	Auth AuthMode

	// Rate is the effective rate rule, nil when none is declared.
	Rate *RateRule

	// Access is the effective access rule; an empty rule means no
	// restriction beyond Auth.
	Access *AccessRule

	// Response is the response message type name, empty when undeclared.
	Response string

	// Fields holds the field rules of every message type reachable from
	// Response, keyed by message name.
	Fields map[string][]FieldRule
}
