package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the expected token issuer (iss claim).
	Issuer string

	// Audience is the expected token audience (aud claim).
	Audience string

	// HeaderName is the metadata key containing the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string

	// SubjectClaim is the claim containing the caller subject.
	// Default: "sub"
	SubjectClaim string

	// RolesClaim is the claim containing caller roles.
	// Default: "roles"
	RolesClaim string

	// PermissionsClaim is the claim containing caller permissions.
	// Default: "permissions"
	PermissionsClaim string
}

// KeyProvider retrieves signing keys for JWT validation.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a static signing key.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// JWTAuthenticator validates JWT bearer tokens.
type JWTAuthenticator struct {
	config      JWTConfig
	keyProvider KeyProvider
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config JWTConfig, keyProvider KeyProvider) *JWTAuthenticator {
	// Apply defaults
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.SubjectClaim == "" {
		config.SubjectClaim = "sub"
	}
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}
	if config.PermissionsClaim == "" {
		config.PermissionsClaim = "permissions"
	}

	return &JWTAuthenticator{
		config:      config,
		keyProvider: keyProvider,
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}

// Supports returns true if the request carries a bearer token.
func (a *JWTAuthenticator) Supports(_ context.Context, req *Request) bool {
	return strings.HasPrefix(req.Get(a.config.HeaderName), a.config.TokenPrefix)
}

// Authenticate validates the JWT token and builds an identity from its
// claims.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	header := req.Get(a.config.HeaderName)
	if header == "" {
		return Failure(ErrMissingCredentials, MethodJWT), nil
	}

	tokenString := strings.TrimPrefix(header, a.config.TokenPrefix)
	if tokenString == header {
		return Failure(ErrMissingCredentials, MethodJWT), nil
	}
	tokenString = strings.TrimSpace(tokenString)

	opts := []jwt.ParserOption{}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.config.Audience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		kid := ""
		if kidVal, ok := token.Header["kid"].(string); ok {
			kid = kidVal
		}
		return a.keyProvider.GetKey(ctx, kid)
	}, opts...)

	if err != nil {
		switch {
		case strings.Contains(err.Error(), "expired"):
			return Failure(ErrTokenExpired, MethodJWT), nil
		case strings.Contains(err.Error(), "malformed"):
			return Failure(ErrTokenMalformed, MethodJWT), nil
		default:
			return Failure(ErrInvalidCredentials, MethodJWT), nil
		}
	}
	if !token.Valid {
		return Failure(ErrInvalidCredentials, MethodJWT), nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Failure(ErrTokenMalformed, MethodJWT), nil
	}

	return Success(a.buildIdentity(claims)), nil
}

func (a *JWTAuthenticator) buildIdentity(claims jwt.MapClaims) *Identity {
	identity := &Identity{
		Method: MethodJWT,
		Claims: make(map[string]any, len(claims)),
	}
	for k, v := range claims {
		identity.Claims[k] = v
	}

	if subject, ok := claims[a.config.SubjectClaim].(string); ok {
		identity.Subject = subject
	}
	identity.Roles = stringSliceClaim(claims, a.config.RolesClaim)
	identity.Permissions = stringSliceClaim(claims, a.config.PermissionsClaim)

	if exp, ok := claims["exp"].(float64); ok {
		identity.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if iat, ok := claims["iat"].(float64); ok {
		identity.IssuedAt = time.Unix(int64(iat), 0)
	}

	return identity
}

// stringSliceClaim extracts a claim that may be a []any of strings or a
// single string.
func stringSliceClaim(claims jwt.MapClaims, name string) []string {
	switch v := claims[name].(type) {
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Ensure JWTAuthenticator implements Authenticator
var _ Authenticator = (*JWTAuthenticator)(nil)

// Ensure StaticKeyProvider implements KeyProvider
var _ KeyProvider = (*StaticKeyProvider)(nil)
