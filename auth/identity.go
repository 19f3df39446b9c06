package auth

import "time"

// Method indicates how authentication was performed.
type Method string

const (
	MethodNone      Method = "none"
	MethodJWT       Method = "jwt"
	MethodAPIKey    Method = "api_key"
	MethodAnonymous Method = "anonymous"
	MethodComposite Method = "composite"
)

// Identity represents an authenticated caller for the lifetime of one
// request. It is consumed by the authorizer, the rate limiter (user and
// API-key bucket keys, bypass roles), and the privacy filter
// (visible-to-roles checks).
type Identity struct {
	// Subject is the unique caller identifier (e.g., user ID, email).
	Subject string

	// Roles are the roles held by this caller.
	Roles []string

	// Permissions are explicit permissions granted to this caller.
	Permissions []string

	// APIKeyID identifies the API key used, when Method is MethodAPIKey.
	// It is the stable rate-limit key for API-key buckets; the raw key
	// material is never retained.
	APIKeyID string

	// Method indicates how authentication was performed.
	Method Method

	// Claims contains the raw claims from the credential.
	Claims map[string]any

	// ExpiresAt is when this identity expires (zero = never).
	ExpiresAt time.Time

	// IssuedAt is when the credential was issued.
	IssuedAt time.Time
}

// HasRole checks if the identity holds a specific role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the identity holds at least one of the given roles.
// Returns false for an empty list.
func (id *Identity) HasAnyRole(roles []string) bool {
	for _, r := range roles {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}

// HasAllRoles checks if the identity holds every one of the given roles.
// Vacuously true for an empty list.
func (id *Identity) HasAllRoles(roles []string) bool {
	for _, r := range roles {
		if !id.HasRole(r) {
			return false
		}
	}
	return true
}

// HasPermission checks if the identity holds a specific permission.
func (id *Identity) HasPermission(perm string) bool {
	for _, p := range id.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the identity holds every given permission.
// Vacuously true for an empty list.
func (id *Identity) HasAllPermissions(perms []string) bool {
	for _, p := range perms {
		if !id.HasPermission(p) {
			return false
		}
	}
	return true
}

// IsExpired checks if the identity has expired.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}
