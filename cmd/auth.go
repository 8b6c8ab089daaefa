package cmd

import (
	"context"
	"errors"
	"fmt"

	"recipebox/internal/auth"
	"recipebox/internal/cli"
	"recipebox/internal/credentials"
	"recipebox/internal/formatting"

	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication with the recipe backend",
		Long: `Manage authentication with the Drupal recipe backend.

Two mechanisms are supported and may coexist. OAuth2 is preferred whenever
its access token is valid; the Drupal session is used otherwise.

Examples:
  recipebox auth login                         # OAuth2 login in the browser
  recipebox auth login --session -u alice      # Username and password login
  recipebox auth status                        # Show local credential state
  recipebox auth status --verify               # Also check the session with the backend
  recipebox auth whoami                        # Show the current identity
  recipebox auth refresh                       # Force a token or CSRF refresh
  recipebox auth logout                        # End every session and clear credentials`,
	}

	authCmd.AddCommand(newAuthLoginCmd(a))
	authCmd.AddCommand(newAuthCallbackCmd(a))
	authCmd.AddCommand(newAuthStatusCmd(a))
	authCmd.AddCommand(newAuthWhoamiCmd(a))
	authCmd.AddCommand(newAuthRefreshCmd(a))
	authCmd.AddCommand(newAuthLogoutCmd(a))
	return authCmd
}

func newAuthCallbackCmd(a *app) *cobra.Command {
	var code, state string
	cmd := &cobra.Command{
		Use:   "callback",
		Short: "Complete an OAuth login from the redirect parameters",
		Long: `Complete an OAuth login started with 'recipebox auth login --manual'.

Copy the code and state query parameters from the URL the browser was
redirected to after approving access.

Examples:
  recipebox auth callback --code <code> --state <state>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			return a.completeOAuth(cmd, code, state, a.cfg.OAuth.RedirectURI)
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the redirect")
	cmd.Flags().StringVar(&state, "state", "", "State parameter from the redirect")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

func newAuthWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the currently authenticated identity",
		Long: `Show the user the stored credentials belong to.

The identity is fetched from the backend, so this also confirms the
credentials are still accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			user, err := a.currentUser(ctx)
			if err != nil {
				return err
			}
			f, err := a.formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return f.FormatIdentity(formatting.Identity{
				ID:     user.ID,
				Name:   user.Name,
				Email:  user.Email,
				Method: a.authenticator.Method().Kind().String(),
			})
		},
	}
}

func newAuthRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a credential refresh",
		Long: `Refresh the stored credentials without waiting for them to be rejected.

With a refresh token the OAuth access token is renewed. With only a
Drupal session the CSRF token is fetched again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}

			_, hasRefresh, err := a.store.Get(ctx, credentials.KeyRefreshToken)
			if err != nil {
				return err
			}
			if hasRefresh {
				token, err := a.client.RefreshAccessToken(ctx)
				if err != nil {
					return err
				}
				a.printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess(fmt.Sprintf("Access token refreshed, expires in %s", formatting.FormatDuration(token.Lifetime()))))
				return nil
			}

			sessionValid, err := a.client.Inspector().IsSessionValid(ctx)
			if err != nil {
				return err
			}
			if !sessionValid {
				return auth.ErrNotAuthenticated
			}
			if _, err := a.client.RefreshCsrfToken(ctx); err != nil {
				return err
			}
			a.printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess("CSRF token refreshed"))
			return nil
		},
	}
}

func newAuthLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End every session and clear stored credentials",
		Long: `Log out of the backend and remove every stored credential.

Server-side logout is attempted for each mechanism whose credentials are
still valid. Local credentials are removed even when the backend cannot be
reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			if err := a.authenticator.Logout(ctx); err != nil {
				return fmt.Errorf("logout incomplete: %w", err)
			}
			a.printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess("Logged out"))
			return nil
		},
	}
}

// currentUser resolves the signed-in user. An expired access token is
// renewed first when a refresh token is stored.
func (a *app) currentUser(ctx context.Context) (*auth.User, error) {
	user, err := a.authenticator.Authenticate(ctx)
	if !errors.Is(err, auth.ErrNotAuthenticated) {
		return user, err
	}

	_, hasRefresh, getErr := a.store.Get(ctx, credentials.KeyRefreshToken)
	if getErr != nil || !hasRefresh {
		return nil, err
	}
	if _, refreshErr := a.client.RefreshAccessToken(ctx); refreshErr != nil {
		return nil, refreshErr
	}
	a.authenticator.Reset()
	return a.authenticator.Authenticate(ctx)
}
