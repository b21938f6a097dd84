// Package server exposes agentgate over HTTP.
//
// Routes:
//
//	GET  /                      index with one login link per provider
//	GET  /login/{provider}      start a login (see oauth.Handler)
//	GET  /callback/{provider}   finish a login
//	GET  /success               post-login confirmation
//	GET  /token/status          whether a user holds a credential
//	POST /query                 run an agent request
//	GET  /audit                 recent audit entries
//	GET  /healthz               liveness
//
// JSON endpoints never include access tokens; /token/status returns only a
// short preview.
package server
