// Package logging provides subsystem-tagged structured logging for recipebox.
//
// It is a thin layer over log/slog. Every entry carries a "subsystem"
// attribute so output from the credential store, the authenticator and the
// request pipeline can be told apart:
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Config", "Loaded configuration from %s", path)
//	logging.Warn("Pipeline", "Retrying %s after CSRF refresh", req.URL.Path)
//	logging.Error("Auth", err, "Token exchange failed")
//
// Audit emits SECURITY_AUDIT lines for credential writes and removals. Those
// lines name the affected keys and never the values.
package logging
