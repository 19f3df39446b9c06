package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtTestSecret = []byte("test-secret-key-at-least-32-bytes-long")

func makeTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtTestSecret)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func newTestJWTAuthenticator(config JWTConfig) *JWTAuthenticator {
	return NewJWTAuthenticator(config, NewStaticKeyProvider(jwtTestSecret))
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a := newTestJWTAuthenticator(JWTConfig{})

	tests := []struct {
		name     string
		metadata map[string][]string
		want     bool
	}{
		{
			name:     "bearer token",
			metadata: map[string][]string{"Authorization": {"Bearer abc"}},
			want:     true,
		},
		{
			name:     "no header",
			metadata: map[string][]string{},
			want:     false,
		},
		{
			name:     "wrong prefix",
			metadata: map[string][]string{"Authorization": {"Basic abc"}},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Metadata: tt.metadata}
			if got := a.Supports(context.Background(), req); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_ValidToken(t *testing.T) {
	a := newTestJWTAuthenticator(JWTConfig{})
	now := time.Now()
	token := makeTestToken(t, jwt.MapClaims{
		"sub":         "user-123",
		"roles":       []string{"user", "editor"},
		"permissions": []string{"doc:read"},
		"exp":         now.Add(time.Hour).Unix(),
		"iat":         now.Unix(),
	})

	req := &Request{Metadata: map[string][]string{"Authorization": {"Bearer " + token}}}
	result, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !result.Authenticated {
		t.Fatalf("Authenticate() not authenticated: %v", result.Err)
	}

	id := result.Identity
	if id.Subject != "user-123" {
		t.Errorf("Subject = %q, want %q", id.Subject, "user-123")
	}
	if !id.HasRole("user") || !id.HasRole("editor") {
		t.Errorf("Roles = %v, want user and editor", id.Roles)
	}
	if !id.HasPermission("doc:read") {
		t.Errorf("Permissions = %v, want doc:read", id.Permissions)
	}
	if id.Method != MethodJWT {
		t.Errorf("Method = %v, want %v", id.Method, MethodJWT)
	}
	if id.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not populated from exp claim")
	}
}

func TestJWTAuthenticator_ExpiredToken(t *testing.T) {
	a := newTestJWTAuthenticator(JWTConfig{})
	token := makeTestToken(t, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	req := &Request{Metadata: map[string][]string{"Authorization": {"Bearer " + token}}}
	result, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if result.Authenticated {
		t.Fatal("expired token should not authenticate")
	}
	if !errors.Is(result.Err, ErrTokenExpired) {
		t.Errorf("Err = %v, want ErrTokenExpired", result.Err)
	}
}

func TestJWTAuthenticator_BadSignature(t *testing.T) {
	a := newTestJWTAuthenticator(JWTConfig{})
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-123"})
	signed, err := token.SignedString([]byte("a-completely-different-signing-key!!"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	req := &Request{Metadata: map[string][]string{"Authorization": {"Bearer " + signed}}}
	result, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if result.Authenticated {
		t.Fatal("token with wrong signature should not authenticate")
	}
	if !errors.Is(result.Err, ErrInvalidCredentials) {
		t.Errorf("Err = %v, want ErrInvalidCredentials", result.Err)
	}
}

func TestJWTAuthenticator_MalformedToken(t *testing.T) {
	a := newTestJWTAuthenticator(JWTConfig{})
	req := &Request{Metadata: map[string][]string{"Authorization": {"Bearer not.a.token"}}}
	result, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if result.Authenticated {
		t.Fatal("garbage token should not authenticate")
	}
	if !errors.Is(result.Err, ErrTokenMalformed) {
		t.Errorf("Err = %v, want ErrTokenMalformed", result.Err)
	}
}

func TestJWTAuthenticator_MissingCredentials(t *testing.T) {
	a := newTestJWTAuthenticator(JWTConfig{})
	req := &Request{Metadata: map[string][]string{}}
	result, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if result.Authenticated {
		t.Fatal("missing header should not authenticate")
	}
	if !errors.Is(result.Err, ErrMissingCredentials) {
		t.Errorf("Err = %v, want ErrMissingCredentials", result.Err)
	}
}

func TestJWTAuthenticator_IssuerValidation(t *testing.T) {
	a := newTestJWTAuthenticator(JWTConfig{Issuer: "auth.example.com"})

	tests := []struct {
		name   string
		issuer string
		want   bool
	}{
		{name: "matching issuer", issuer: "auth.example.com", want: true},
		{name: "wrong issuer", issuer: "evil.example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := makeTestToken(t, jwt.MapClaims{
				"sub": "user-123",
				"iss": tt.issuer,
				"exp": time.Now().Add(time.Hour).Unix(),
			})
			req := &Request{Metadata: map[string][]string{"Authorization": {"Bearer " + token}}}
			result, err := a.Authenticate(context.Background(), req)
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if result.Authenticated != tt.want {
				t.Errorf("Authenticated = %v, want %v (err: %v)", result.Authenticated, tt.want, result.Err)
			}
		})
	}
}

func TestJWTAuthenticator_CustomClaims(t *testing.T) {
	a := newTestJWTAuthenticator(JWTConfig{
		SubjectClaim: "email",
		RolesClaim:   "groups",
	})
	token := makeTestToken(t, jwt.MapClaims{
		"email":  "alice@example.com",
		"groups": "staff",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	req := &Request{Metadata: map[string][]string{"Authorization": {"Bearer " + token}}}
	result, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !result.Authenticated {
		t.Fatalf("Authenticate() failed: %v", result.Err)
	}
	if result.Identity.Subject != "alice@example.com" {
		t.Errorf("Subject = %q, want email claim", result.Identity.Subject)
	}
	// A single-string roles claim becomes a one-element slice.
	if !result.Identity.HasRole("staff") {
		t.Errorf("Roles = %v, want staff", result.Identity.Roles)
	}
}
