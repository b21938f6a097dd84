// Package oauth provides the protocol-level OAuth 2.0 / OpenID Connect
// building blocks used by agentgate's authorization flow.
//
// # Core Components
//
//   - PKCEChallenge: Proof Key for Code Exchange generation (RFC 7636, S256 only)
//   - Token: token endpoint response representation
//   - Metadata: OIDC / RFC 8414 server metadata with cached discovery
//   - IDTokenClaims: identity claims decoded from an ID token
//
// The flow state machine itself lives in internal/oauth; this package holds
// no per-user state.
//
// # Identity tokens
//
// DecodeIDTokenClaims reads the claims of an ID token WITHOUT verifying its
// signature. The result is suitable for display and audit attribution only
// and must not be used as an authorization decision.
package oauth
