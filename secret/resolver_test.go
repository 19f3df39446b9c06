package secret

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type staticProvider struct {
	name    string
	secrets map[string]string
	err     error
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) Resolve(_ context.Context, ref string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.secrets[ref], nil
}

func (p *staticProvider) Close() error { return nil }

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("POLICYKIT_TEST_VAR", "hello")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain value", input: "plain", want: "plain"},
		{name: "braced var", input: "${POLICYKIT_TEST_VAR}", want: "hello"},
		{name: "embedded var", input: "pre-${POLICYKIT_TEST_VAR}-post", want: "pre-hello-post"},
		{name: "missing var", input: "${POLICYKIT_TEST_MISSING}", wantErr: true},
		{name: "escaped dollar", input: "cost: $$5", want: "cost: $5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandEnvStrict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExpandEnvStrict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnvStrict_MissingVarsListed(t *testing.T) {
	_, err := ExpandEnvStrict("${POLICYKIT_A_MISSING} ${POLICYKIT_B_MISSING}")
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	if !strings.Contains(err.Error(), "POLICYKIT_A_MISSING") || !strings.Contains(err.Error(), "POLICYKIT_B_MISSING") {
		t.Errorf("error %v should name every missing variable", err)
	}
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantProvider string
		wantRef      string
		wantOK       bool
	}{
		{name: "valid", input: "secretref:vault:kv/data/api#key", wantProvider: "vault", wantRef: "kv/data/api#key", wantOK: true},
		{name: "ref with colons", input: "secretref:aws:arn:aws:secretsmanager:us-east-1", wantProvider: "aws", wantRef: "arn:aws:secretsmanager:us-east-1", wantOK: true},
		{name: "not a ref", input: "just-a-value", wantOK: false},
		{name: "missing ref part", input: "secretref:vault", wantOK: false},
		{name: "empty provider", input: "secretref::path", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, ref, ok := ParseSecretRef(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseSecretRef() ok = %v, want %v", ok, tt.wantOK)
			}
			if provider != tt.wantProvider || ref != tt.wantRef {
				t.Errorf("ParseSecretRef() = (%q, %q), want (%q, %q)", provider, ref, tt.wantProvider, tt.wantRef)
			}
		})
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	r := NewResolver(&staticProvider{
		name:    "vault",
		secrets: map[string]string{"kv/jwt": "signing-secret"},
	})
	ctx := context.Background()

	got, err := r.ResolveValue(ctx, "secretref:vault:kv/jwt")
	if err != nil {
		t.Fatalf("ResolveValue() error = %v", err)
	}
	if got != "signing-secret" {
		t.Errorf("ResolveValue() = %q, want %q", got, "signing-secret")
	}
}

func TestResolver_PlainValuePassesThrough(t *testing.T) {
	r := NewResolver()
	got, err := r.ResolveValue(context.Background(), "plain-value")
	if err != nil {
		t.Fatalf("ResolveValue() error = %v", err)
	}
	if got != "plain-value" {
		t.Errorf("ResolveValue() = %q, want unchanged", got)
	}
}

func TestResolver_UnknownProvider(t *testing.T) {
	r := NewResolver()
	_, err := r.ResolveValue(context.Background(), "secretref:vault:kv/jwt")
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestResolver_EmptySecretRejected(t *testing.T) {
	r := NewResolver(&staticProvider{name: "vault", secrets: map[string]string{}})
	_, err := r.ResolveValue(context.Background(), "secretref:vault:kv/nope")
	if err == nil {
		t.Fatal("expected error for empty secret value")
	}
}

func TestResolver_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("vault sealed")
	r := NewResolver(&staticProvider{name: "vault", err: boom})
	_, err := r.ResolveValue(context.Background(), "secretref:vault:kv/jwt")
	if !errors.Is(err, boom) {
		t.Errorf("ResolveValue() error = %v, want provider error", err)
	}
}

func TestResolver_NilResolver(t *testing.T) {
	var r *Resolver

	got, err := r.ResolveValue(context.Background(), "plain")
	if err != nil {
		t.Fatalf("ResolveValue() error = %v", err)
	}
	if got != "plain" {
		t.Errorf("ResolveValue() = %q, want %q", got, "plain")
	}

	if _, err := r.ResolveValue(context.Background(), "secretref:vault:kv/jwt"); err == nil {
		t.Error("nil resolver should reject secret references")
	}
}

func TestResolver_ResolveMap(t *testing.T) {
	t.Setenv("POLICYKIT_TEST_TOKEN", "tok")
	r := NewResolver(&staticProvider{
		name:    "vault",
		secrets: map[string]string{"kv/key": "s3cret"},
	})

	got, err := r.ResolveMap(context.Background(), map[string]string{
		"token":  "${POLICYKIT_TEST_TOKEN}",
		"secret": "secretref:vault:kv/key",
		"plain":  "value",
	})
	if err != nil {
		t.Fatalf("ResolveMap() error = %v", err)
	}
	want := map[string]string{"token": "tok", "secret": "s3cret", "plain": "value"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ResolveMap()[%q] = %q, want %q", k, got[k], v)
		}
	}
}
