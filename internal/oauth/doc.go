// Package oauth implements the authorization-code-with-PKCE flow that turns
// a user's consent at an identity provider into a stored credential.
//
// A login attempt moves through these states:
//
//	Idle ──Begin──▶ AwaitingCallback ──Complete──▶ Exchanging ──▶ Authorized
//	                       │                            │
//	                       └──── state mismatch ────────┴──▶ Failed
//
// Begin persists an AuthSession keyed by the random state parameter and
// returns the provider's authorization URL. Complete consumes that session
// exactly once, exchanges the code together with the original PKCE
// verifier, resolves the subject and writes the credential before
// returning. A callback whose state is unknown, expired, already used or
// issued for another provider never reaches the token endpoint.
//
// Pending sessions live in a SessionStore: in memory by default, or in
// Redis when several server replicas share callbacks.
package oauth
