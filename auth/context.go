package auth

import "context"

// Context keys for auth-related values.
type contextKey int

const (
	identityKey contextKey = iota
	metadataKey
)

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// SubjectFromContext retrieves the caller subject from the context.
// Returns empty string if no identity is present.
func SubjectFromContext(ctx context.Context) string {
	id := IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.Subject
}

// WithMetadata returns a new context with transport metadata attached.
// Authenticators use it to extract credentials.
func WithMetadata(ctx context.Context, md map[string][]string) context.Context {
	return context.WithValue(ctx, metadataKey, md)
}

// MetadataFromContext retrieves transport metadata from the context.
// Returns nil if no metadata is present.
func MetadataFromContext(ctx context.Context) map[string][]string {
	md, _ := ctx.Value(metadataKey).(map[string][]string)
	return md
}
