package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/policykit/secret"
)

// AuthenticatorFactory creates an authenticator from configuration.
type AuthenticatorFactory func(ctx context.Context, cfg map[string]any, secrets *secret.Resolver) (Authenticator, error)

// Registry manages authenticator factories keyed by strategy name.
// Credential-bearing configuration values are resolved through an optional
// secret.Resolver before construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]AuthenticatorFactory
	secrets   *secret.Resolver
}

// NewRegistry creates an auth registry with the built-in factories
// ("jwt", "api_key") pre-registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]AuthenticatorFactory)}
	_ = r.Register("jwt", jwtFactory)
	_ = r.Register("api_key", apiKeyFactory)
	return r
}

// WithSecretResolver sets the resolver used for credential values.
func (r *Registry) WithSecretResolver(s *secret.Resolver) *Registry {
	r.mu.Lock()
	r.secrets = s
	r.mu.Unlock()
	return r
}

// Register adds an authenticator factory.
func (r *Registry) Register(name string, factory AuthenticatorFactory) error {
	if name == "" || factory == nil {
		return errors.New("auth: invalid authenticator registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("auth: authenticator %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates an authenticator by strategy name.
func (r *Registry) Create(ctx context.Context, name string, cfg map[string]any) (Authenticator, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	secrets := r.secrets
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("auth: authenticator %q not found", name)
	}
	return factory(ctx, cfg, secrets)
}

// List returns registered strategy names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global auth registry with built-in factories.
var DefaultRegistry = NewRegistry()

// resolveSecret resolves value through secrets when configured; a nil
// resolver still expands environment references.
func resolveSecret(ctx context.Context, secrets *secret.Resolver, value string) (string, error) {
	return secrets.ResolveValue(ctx, value)
}

func jwtFactory(ctx context.Context, cfg map[string]any, secrets *secret.Resolver) (Authenticator, error) {
	config := JWTConfig{}

	if issuer, ok := cfg["issuer"].(string); ok {
		config.Issuer = issuer
	}
	if audience, ok := cfg["audience"].(string); ok {
		config.Audience = audience
	}
	if headerName, ok := cfg["header_name"].(string); ok {
		config.HeaderName = headerName
	}
	if tokenPrefix, ok := cfg["token_prefix"].(string); ok {
		config.TokenPrefix = tokenPrefix
	}
	if subjectClaim, ok := cfg["subject_claim"].(string); ok {
		config.SubjectClaim = subjectClaim
	}
	if rolesClaim, ok := cfg["roles_claim"].(string); ok {
		config.RolesClaim = rolesClaim
	}
	if permsClaim, ok := cfg["permissions_claim"].(string); ok {
		config.PermissionsClaim = permsClaim
	}

	// Key provider: JWKS URL or a (secret-resolvable) static secret.
	var keyProvider KeyProvider
	if jwksURL, ok := cfg["jwks_url"].(string); ok {
		jwksConfig := JWKSConfig{URL: jwksURL}
		if cacheTTL, ok := cfg["cache_ttl"].(string); ok {
			if d, err := time.ParseDuration(cacheTTL); err == nil {
				jwksConfig.CacheTTL = d
			}
		}
		keyProvider = NewJWKSKeyProvider(jwksConfig)
	} else if raw, ok := cfg["secret"].(string); ok {
		resolved, err := resolveSecret(ctx, secrets, raw)
		if err != nil {
			return nil, fmt.Errorf("auth: resolve jwt secret: %w", err)
		}
		keyProvider = NewStaticKeyProvider([]byte(resolved))
	} else {
		return nil, errors.New("auth: jwt authenticator requires jwks_url or secret")
	}

	return NewJWTAuthenticator(config, keyProvider), nil
}

func apiKeyFactory(ctx context.Context, cfg map[string]any, secrets *secret.Resolver) (Authenticator, error) {
	config := APIKeyConfig{}
	if headerName, ok := cfg["header_name"].(string); ok {
		config.HeaderName = headerName
	}

	store := NewMemoryAPIKeyStore()
	if keys, ok := cfg["keys"].([]any); ok {
		for _, k := range keys {
			keyMap, ok := k.(map[string]any)
			if !ok {
				continue
			}
			info := &APIKeyInfo{}
			if id, ok := keyMap["id"].(string); ok {
				info.ID = id
			}
			if hash, ok := keyMap["hash"].(string); ok {
				info.KeyHash = hash
			}
			if raw, ok := keyMap["key"].(string); ok {
				// Literal or secret-referenced key material; stored hashed.
				resolved, err := resolveSecret(ctx, secrets, raw)
				if err != nil {
					return nil, fmt.Errorf("auth: resolve api key %q: %w", info.ID, err)
				}
				info.KeyHash = HashAPIKey(resolved)
			}
			if subject, ok := keyMap["subject"].(string); ok {
				info.Subject = subject
			}
			info.Roles = stringSlice(keyMap["roles"])
			info.Permissions = stringSlice(keyMap["permissions"])
			_ = store.Add(info)
		}
	}

	return NewAPIKeyAuthenticator(config, store), nil
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
