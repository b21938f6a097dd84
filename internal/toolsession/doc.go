// Package toolsession opens and drives MCP tool sessions on behalf of a
// user.
//
// A session is a stateful request/response channel to one tool-provider
// process. The user's stored credential is handed to the process through a
// single environment variable at start-up; no other credential travels.
//
//	Closed ──Open──▶ Opening ──handshake──▶ Ready ◀──▶ InCall
//	                    │                     │
//	                    └─ SessionInitError   └──Close──▶ Closing ──▶ Closed
//
// Open fails with ErrNoCredential before any process is started when the
// user has no credential for the service. Tool failures surface as
// ToolInvocationError and leave the session Ready. Close is idempotent and
// deliberately takes no context so that a cancelled request still releases
// its process.
package toolsession
