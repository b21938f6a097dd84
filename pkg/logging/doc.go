// Package logging provides the subsystem-tagged structured logger used across
// agentgate.
//
// Output is produced through log/slog. Every entry carries a "subsystem"
// attribute so that lines from the OAuth flow, the credential store and the
// dispatch loop can be told apart:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("OAuth", "Authorization started for provider %s", name)
//	logging.Error("Dispatch", err, "Tool call failed for user %s", user)
//
// Long-running servers can write to a size-rotated file instead:
//
//	w := logging.NewFileWriter(logging.FileOptions{Path: "/var/log/agentgate.log"})
//	logging.Init(logging.Options{Level: logging.LevelInfo, Format: "json", Output: w})
//
// Security-relevant events (credential writes, consumed authorization
// sessions) go through Audit, which tags entries with event=SECURITY_AUDIT.
// Token values must never be passed to any of these functions.
package logging
