// Package cli holds the pieces shared by the recipebox commands: the global
// flag set, user-facing error types with remediation hints and their mapping
// from auth errors, a quiet-aware spinner, and password prompting.
//
// Commands return errors from ClassifyAuthError so the root command can pick
// an exit code:
//
//	user, err := authenticator.Authenticate(ctx)
//	if err != nil {
//		return cli.ClassifyAuthError(err, cfg.Drupal.BaseURL)
//	}
package cli
