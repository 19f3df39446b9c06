// Package privacy filters response messages according to declared field
// privacy rules before they reach the caller.
//
// Messages are handled in decoded form (map[string]any, with nested
// messages as maps and repeated fields as slices). For each declared rule:
// VISIBLE passes the value through, OMIT removes the field, and REDACT
// replaces the value with a fixed placeholder for the field's kind.
// Callers whose roles intersect a rule's visible-to list see the real
// value. Filtering recurses into nested message fields and is idempotent.
//
// Placeholder policy (stable): string -> "", number -> 0, bool -> false,
// bytes -> nil. A redacted message-kinded field is omitted, since a
// structured value has no meaningful placeholder.
package privacy
