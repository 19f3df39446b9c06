// Package policy defines the declarative policy model (authentication,
// access control, rate limiting, field privacy) attached to services,
// methods, and message fields, and resolves effective per-method policies.
//
// Descriptors are produced by an external schema toolchain and are treated
// as immutable after registration. Resolution merges method-level overrides
// onto service-level defaults field by field and caches the result for the
// lifetime of the process.
package policy
