package privacy

import (
	"github.com/jonwraymond/policykit/auth"
	"github.com/jonwraymond/policykit/policy"
)

// Filter applies field privacy rules for one resolved policy's message
// closure. Stateless and safe for concurrent use.
type Filter struct {
	fields map[string][]policy.FieldRule
}

// NewFilter creates a filter over the field rules gathered by policy
// resolution, keyed by message type name.
func NewFilter(fields map[string][]policy.FieldRule) *Filter {
	return &Filter{fields: fields}
}

// Apply filters msg as an instance of the named message type for the given
// caller. The input is not mutated; the returned map is a filtered copy.
// A nil identity is an unauthenticated caller, which never satisfies a
// visible-to-roles exception.
func (f *Filter) Apply(message string, msg map[string]any, id *auth.Identity) map[string]any {
	if msg == nil {
		return nil
	}

	rules := f.fields[message]
	out := make(map[string]any, len(msg))

	for name, value := range msg {
		rule, ok := fieldRule(rules, name)
		if !ok {
			out[name] = value
			continue
		}

		visible := rule.Privacy == nil ||
			rule.Privacy.Mode == policy.Visible ||
			(id != nil && id.HasAnyRole(rule.Privacy.VisibleToRoles))

		switch {
		case visible:
			out[name] = f.applyNested(rule, value, id)
		case rule.Privacy.Mode == policy.Omit:
			// dropped
		case rule.Privacy.Mode == policy.Redact:
			if rule.Kind == policy.KindMessage {
				// no placeholder for structured values
				continue
			}
			out[name] = placeholder(rule.Kind)
		}
	}
	return out
}

// applyNested recurses into message-kinded fields so rules on nested
// message types apply regardless of the outer field's own rule.
func (f *Filter) applyNested(rule policy.FieldRule, value any, id *auth.Identity) any {
	if rule.Kind != policy.KindMessage {
		return value
	}
	switch v := value.(type) {
	case map[string]any:
		return f.Apply(rule.Message, v, id)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if m, ok := item.(map[string]any); ok {
				out[i] = f.Apply(rule.Message, m, id)
			} else {
				out[i] = item
			}
		}
		return out
	default:
		return value
	}
}

// Apply filters msg using the given field rules without constructing a
// Filter. Convenience for one-shot use.
func Apply(message string, fields map[string][]policy.FieldRule, msg map[string]any, id *auth.Identity) map[string]any {
	return NewFilter(fields).Apply(message, msg, id)
}

func fieldRule(rules []policy.FieldRule, name string) (policy.FieldRule, bool) {
	for _, r := range rules {
		if r.Name == name {
			return r, true
		}
	}
	return policy.FieldRule{}, false
}

// placeholder returns the stable redaction value for a field kind.
func placeholder(kind policy.FieldKind) any {
	switch kind {
	case policy.KindString:
		return ""
	case policy.KindNumber:
		return float64(0)
	case policy.KindBool:
		return false
	case policy.KindBytes:
		return nil
	default:
		return nil
	}
}
