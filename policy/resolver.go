package policy

import (
	"sync"
)

// Resolver registers descriptors and resolves effective per-method
// policies. Registration validates eagerly; Resolve is a cache read.
//
// Contract:
// - Concurrency: safe for concurrent use; registration is expected at
//   startup, resolution on the hot path.
// - Errors: RegisterService rejects malformed descriptors with a
//   *ResolutionError and registers nothing on failure.
type Resolver struct {
	mu       sync.RWMutex
	messages map[string]*MessageDescriptor
	policies map[string]*EffectivePolicy // keyed service + "/" + method
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		messages: make(map[string]*MessageDescriptor),
		policies: make(map[string]*EffectivePolicy),
	}
}

// RegisterMessages registers message descriptors so field privacy can be
// gathered for methods whose responses reference them. Re-registering a
// name replaces the previous descriptor; register messages before the
// services that reference them.
func (r *Resolver) RegisterMessages(msgs ...*MessageDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range msgs {
		if m == nil || m.Name == "" {
			return &ResolutionError{Reason: "message descriptor missing name"}
		}
		for _, f := range m.Fields {
			if f.Name == "" {
				return &ResolutionError{Reason: "message " + m.Name + " has a field without a name"}
			}
			if f.Kind == KindMessage && f.Message == "" {
				return &ResolutionError{Reason: "message " + m.Name + " field " + f.Name + " is message-kinded but names no message type"}
			}
		}
		r.messages[m.Name] = m
	}
	return nil
}

// RegisterService validates svc and precomputes the effective policy of
// every method. Validation failure is fatal for the whole service.
func (r *Resolver) RegisterService(svc *ServiceDescriptor) error {
	if svc == nil || svc.Name == "" {
		return &ResolutionError{Reason: "service descriptor missing name"}
	}
	if err := validateAuthRule(svc.Auth); err != nil {
		return &ResolutionError{Service: svc.Name, Reason: "invalid service auth rule", Cause: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make(map[string]*EffectivePolicy, len(svc.Methods))
	for i := range svc.Methods {
		m := &svc.Methods[i]
		if m.Name == "" {
			return &ResolutionError{Service: svc.Name, Reason: "method descriptor missing name"}
		}
		key := svc.Name + "/" + m.Name
		if _, dup := staged[key]; dup {
			return &ResolutionError{Service: svc.Name, Method: m.Name, Reason: "duplicate method"}
		}
		if err := validateAuthRule(m.Auth); err != nil {
			return &ResolutionError{Service: svc.Name, Method: m.Name, Reason: "invalid method auth rule", Cause: err}
		}
		staged[key] = r.mergeLocked(svc, m)
	}

	for key, p := range staged {
		r.policies[key] = p
	}
	return nil
}

// Resolve returns the effective policy for service/method. The result is
// shared and must not be mutated.
func (r *Resolver) Resolve(service, method string) (*EffectivePolicy, error) {
	r.mu.RLock()
	p, ok := r.policies[service+"/"+method]
	r.mu.RUnlock()

	if !ok {
		return nil, &ResolutionError{Service: service, Method: method, Reason: "no registered policy"}
	}
	return p, nil
}

// mergeLocked builds the effective policy for one method. Method values
// override service values field by field: a method may override Rate while
// inheriting Mode, and vice versa. Caller must hold the lock.
func (r *Resolver) mergeLocked(svc *ServiceDescriptor, m *MethodDescriptor) *EffectivePolicy {
	p := &EffectivePolicy{
		Service:  svc.Name,
		Method:   m.Name,
		Auth:     AuthRequired, // undeclared at both levels is fail-safe
		Response: m.Response,
	}

	if svc.Auth != nil {
		if svc.Auth.Mode != AuthUnspecified {
			p.Auth = svc.Auth.Mode
		}
		p.Rate = svc.Auth.Rate
	}
	if m.Auth != nil {
		if m.Auth.Mode != AuthUnspecified {
			p.Auth = m.Auth.Mode
		}
		if m.Auth.Rate != nil {
			p.Rate = m.Auth.Rate
		}
	}

	p.Access = svc.Access
	if m.Access != nil {
		p.Access = m.Access
	}

	if m.Response != "" {
		p.Fields = r.gatherFieldsLocked(m.Response)
	}
	return p
}

// gatherFieldsLocked collects field rules for root and every message type
// transitively reachable from it. Caller must hold the lock.
func (r *Resolver) gatherFieldsLocked(root string) map[string][]FieldRule {
	fields := make(map[string][]FieldRule)
	pending := []string{root}
	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		if _, seen := fields[name]; seen {
			continue
		}
		msg, ok := r.messages[name]
		if !ok {
			continue // unregistered message types carry no privacy rules
		}
		fields[name] = msg.Fields
		for _, f := range msg.Fields {
			if f.Kind == KindMessage {
				pending = append(pending, f.Message)
			}
		}
	}
	return fields
}

func validateAuthRule(rule *AuthRule) error {
	if rule == nil || rule.Rate == nil {
		return nil
	}
	return rule.Rate.Validate()
}
