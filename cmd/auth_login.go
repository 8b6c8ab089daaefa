package cmd

import (
	"context"
	"errors"
	"fmt"

	"recipebox/internal/auth/callback"
	"recipebox/internal/cli"
	"recipebox/internal/formatting"
	"recipebox/pkg/logging"

	"github.com/spf13/cobra"
)

type loginOptions struct {
	session   bool
	username  string
	password  string
	noBrowser bool
	manual    bool
}

func newAuthLoginCmd(a *app) *cobra.Command {
	var opts loginOptions
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the recipe backend",
		Long: `Authenticate with the Drupal recipe backend.

By default an OAuth2 authorization code flow is started: a local listener
receives the redirect, the authorization page is opened in the browser and
the returned code is exchanged for tokens.

With --session a Drupal username and password are used instead. The
password is read from --password, or from standard input (hidden when it
is a terminal).

Examples:
  recipebox auth login                                  # OAuth2 in the browser
  recipebox auth login --no-browser                     # Print the URL instead of opening it
  recipebox auth login --manual                         # Headless: finish with 'auth callback'
  recipebox auth login --session --username alice       # Prompt for the password
  echo "$PW" | recipebox auth login --session -u alice  # Password from stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			if opts.session {
				return a.loginSession(cmd, opts)
			}
			if opts.manual {
				return a.loginManual(cmd)
			}
			return a.loginOAuth(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.session, "session", false, "Log in with a Drupal username and password")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Drupal username (with --session)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Drupal password (with --session; prefer stdin)")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	cmd.Flags().BoolVar(&opts.manual, "manual", false, "Print the authorization URL and exit; finish with 'recipebox auth callback'")
	cmd.MarkFlagsMutuallyExclusive("session", "manual")
	return cmd
}

func (a *app) loginSession(cmd *cobra.Command, opts loginOptions) error {
	ctx := cmd.Context()
	if opts.username == "" {
		return fmt.Errorf("--username is required with --session")
	}

	password := opts.password
	if password == "" {
		var err error
		password, err = cli.ReadSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
		if err != nil {
			return err
		}
	}

	login, err := a.client.LoginWithSession(ctx, opts.username, password)
	if err != nil {
		return err
	}
	a.authenticator.Reset()
	ok, err := a.authenticator.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &cli.AuthFailedError{BaseURL: a.cfg.Drupal.BaseURL, Reason: errors.New("session was not accepted after login")}
	}

	name := opts.username
	if login.CurrentUser != nil && login.CurrentUser.Name != "" {
		name = login.CurrentUser.Name
	}
	a.printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess(fmt.Sprintf("Logged in to %s as %s (session)", a.cfg.Drupal.BaseURL, name)))
	return nil
}

func (a *app) loginManual(cmd *cobra.Command) error {
	authURL, err := a.client.InitiateAuthFlow(cmd.Context(), a.cfg.OAuth.RedirectURI)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	a.printf(out, "Open this URL in a browser and approve access:\n\n")
	fmt.Fprintln(out, authURL)
	a.printf(out, "\nThen run:\n  recipebox auth callback --code <code> --state <state>\n")
	return nil
}

func (a *app) loginOAuth(cmd *cobra.Command, opts loginOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), callback.Timeout)
	defer cancel()

	server, err := callback.NewServerForRedirect(a.cfg.OAuth.RedirectURI)
	if err != nil {
		return err
	}
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return err
	}
	defer server.Stop()

	authURL, err := a.client.InitiateAuthFlow(ctx, redirectURI)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.noBrowser {
		a.printf(out, "Open this URL in a browser to continue:\n\n")
		fmt.Fprintln(out, authURL)
	} else {
		a.printf(out, "Opening browser for authentication...\n")
		if err := a.openBrowser(authURL); err != nil {
			logging.Debug("CLI", "Browser launch failed: %v", err)
			a.printf(out, "%s\n\n%s\n", cli.FormatWarning("Could not open a browser. Open this URL manually:"), authURL)
		}
	}

	spin := cli.NewSpinner(cmd.ErrOrStderr(), "Waiting for authentication...", a.flags.Quiet)
	spin.Start()
	result, err := server.Wait(ctx)
	spin.Stop("")
	if err != nil {
		return &cli.AuthFailedError{BaseURL: a.cfg.Drupal.BaseURL, Reason: fmt.Errorf("no authorization received: %w", err)}
	}
	if result.IsError() {
		return &cli.AuthFailedError{BaseURL: a.cfg.Drupal.BaseURL, Reason: result.Err()}
	}

	return a.completeOAuth(cmd, result.Code, result.State, redirectURI)
}

// completeOAuth verifies state, exchanges the code and confirms the token
// by resolving the user.
func (a *app) completeOAuth(cmd *cobra.Command, code, state, redirectURI string) error {
	ctx := cmd.Context()
	token, err := a.client.CompleteAuthFlow(ctx, code, state, redirectURI)
	if err != nil {
		return err
	}

	a.authenticator.Reset()
	user, err := a.authenticator.Authenticate(ctx)
	if err != nil {
		return err
	}
	a.printf(cmd.OutOrStdout(), "%s\n", cli.FormatSuccess(fmt.Sprintf(
		"Logged in to %s as %s (oauth, token expires in %s)",
		a.cfg.Drupal.BaseURL, user.Name, formatting.FormatDuration(token.Lifetime()))))
	return nil
}
