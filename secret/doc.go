// Package secret resolves secret references in configuration values so
// credentials (JWT signing secrets, API key material) never need to appear
// literally. Values expand environment variables strictly, and values of
// the form secretref:<provider>:<ref> resolve through registered providers.
package secret
