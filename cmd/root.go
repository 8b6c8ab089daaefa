package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"recipebox/internal/cli"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates a login attempt failed.
	ExitCodeAuthFailed = 3
)

var version = "dev"

// SetVersion sets the version reported by --version and the version command.
// It is called from main with the value injected at build time.
func SetVersion(v string) {
	version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return version
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recipebox",
		Short: "Browse a Drupal recipe site from the terminal",
		Long: `recipebox is a command-line client for a headless Drupal recipe backend.

It signs in with OAuth2 (browser-based authorization code flow) or with a
Drupal username and password (session cookie plus CSRF token), keeps the
resulting credentials in a local store and uses them to browse recipes.`,
		Version: version,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initLogging()
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "recipebox version %s\n" .Version}}`)
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	cli.RegisterCommonFlags(rootCmd, &a.flags)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newRecipesCmd(a))
	return rootCmd
}

// execute runs the command line args and returns the error classified for
// exit code selection.
func (a *app) execute(ctx context.Context, args []string) error {
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	defer a.close()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	return cli.ClassifyAuthError(err, a.cfg.Drupal.BaseURL)
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := a.execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

// printf writes non-essential output, suppressed by --quiet.
func (a *app) printf(w io.Writer, format string, args ...interface{}) {
	if !a.flags.Quiet {
		fmt.Fprintf(w, format, args...)
	}
}
