// Package auth provides caller identity, the authenticator capability
// contract, and rule-set based authorization for the enforcement pipeline.
//
// Authenticators are pluggable strategies supplied by the integrator; JWT
// and API key implementations ship as batteries. The authorizer evaluates
// declared access rules: a caller is granted access if any rule set's roles
// and permissions are fully contained in the caller's. The package is
// protocol-agnostic and can be used with any transport layer.
package auth
