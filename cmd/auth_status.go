package cmd

import (
	"context"

	"recipebox/internal/formatting"
	"recipebox/pkg/logging"

	"github.com/spf13/cobra"
)

func newAuthStatusCmd(a *app) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long: `Show which credentials are stored and whether they are usable.

The check is local: an access token counts as valid until five minutes
before it expires, and a session counts as valid while its cookie is
stored. A session invalidated on the server looks valid until --verify
asks the backend about it; a rejected session is then removed.

Examples:
  recipebox auth status
  recipebox auth status --verify
  recipebox auth status -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			status, err := a.authStatus(ctx, verify)
			if err != nil {
				return err
			}
			f, err := a.formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return f.FormatStatus(status)
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Ask the backend whether the credentials are still accepted")
	return cmd
}

func (a *app) authStatus(ctx context.Context, verify bool) (formatting.Status, error) {
	status := formatting.Status{BaseURL: a.cfg.Drupal.BaseURL, Method: "none"}
	inspector := a.client.Inspector()

	if verify {
		hadSession, err := inspector.IsSessionValid(ctx)
		if err != nil {
			return status, err
		}
		alive, err := a.authenticator.Ping(ctx)
		if err != nil {
			return status, err
		}
		if hadSession {
			status.SessionVerified = &alive
		}
	}

	token, err := a.authenticator.Token(ctx)
	if err != nil {
		return status, err
	}
	oauthValid := inspector.TokenValid(token)
	status.OAuthValid = oauthValid
	if token != nil {
		status.RefreshToken = token.RefreshToken != ""
		if !token.Expiry.IsZero() {
			expiresAt := token.Expiry
			status.ExpiresAt = &expiresAt
		}
	}

	sessionValid, err := inspector.IsSessionValid(ctx)
	if err != nil {
		return status, err
	}
	status.SessionValid = sessionValid

	status.Authenticated = oauthValid || sessionValid
	switch {
	case oauthValid:
		status.Method = "oauth"
	case sessionValid:
		status.Method = "session"
	}

	if verify && status.Authenticated {
		user, err := a.authenticator.Authenticate(ctx)
		if err != nil {
			logging.Warn("CLI", "Stored credentials were not accepted: %v", err)
			status.Authenticated = false
		} else {
			status.User = user.Name
			status.Method = a.authenticator.Method().Kind().String()
		}
	}
	return status, nil
}
