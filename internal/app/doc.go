// Package app provides application bootstrap and lifecycle management for
// agentgate.
//
// Bootstrap loads the configuration, initializes logging and builds every
// component explicitly, in dependency order:
//
//  1. Credential Store (JSON snapshot on disk)
//  2. Authorization session table (memory or redis)
//  3. Authorization flow over the configured providers
//  4. Tool session manager over the configured tool servers
//  5. Language model, tool selector and audit sink
//  6. Dispatcher
//
// Nothing is registered globally; commands receive the assembled Services
// and the HTTP server receives them through internal/server.
//
// Serve runs the HTTP server until the context is cancelled, then shuts it
// down gracefully. When started by systemd with Type=notify, readiness and
// shutdown are reported through sd_notify.
package app
