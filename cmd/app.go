package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"recipebox/internal/auth"
	"recipebox/internal/auth/callback"
	"recipebox/internal/cli"
	"recipebox/internal/config"
	"recipebox/internal/credentials"
	"recipebox/internal/formatting"
	"recipebox/internal/recipes"
	"recipebox/pkg/logging"

	"golang.org/x/term"
)

// app carries the dependencies of one CLI invocation. Backend-facing
// dependencies are built on first use so that commands such as version
// work without a configuration.
type app struct {
	flags cli.CommandFlags

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg           config.Config
	store         credentials.Store
	client        *auth.Client
	authenticator *auth.Authenticator
	httpClient    *http.Client

	openBrowser func(url string) error
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:          in,
		out:         out,
		errOut:      errOut,
		openBrowser: callback.OpenBrowser,
	}
}

func (a *app) initLogging() error {
	format := logging.Format(a.flags.LogFormat)
	if format != logging.FormatText && format != logging.FormatJSON {
		return fmt.Errorf("unsupported log format: %q (valid: text, json)", a.flags.LogFormat)
	}
	level, err := a.flags.LogLevel()
	if err != nil {
		return err
	}
	logging.Init(level, format, a.errOut)
	return nil
}

// setup loads the configuration, opens the credential store and wires the
// auth client, authenticator and authenticated HTTP client.
func (a *app) setup(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	cfg, err := config.LoadConfig(a.flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	store, err := credentials.Open(ctx, cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	a.store = store

	a.client = auth.NewClient(store, auth.Config{
		BaseURL:         cfg.Drupal.BaseURL,
		ClientID:        cfg.OAuth.ClientID,
		ClientSecret:    cfg.OAuth.ClientSecret,
		Scope:           cfg.OAuth.Scope,
		ExpiryBuffer:    cfg.OAuth.ExpiryBuffer(),
		RefreshTokenTTL: cfg.OAuth.RefreshTokenTTL,
	}, auth.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}))
	a.authenticator = auth.NewAuthenticator(a.client)
	a.httpClient = auth.NewHTTPClient(a.authenticator, nil)
	a.httpClient.Timeout = cfg.HTTP.Timeout

	if cfg.Session.VerifyOnStart {
		a.verifySession(ctx)
	}
	return nil
}

// verifySession drops a stored session the backend no longer accepts.
func (a *app) verifySession(ctx context.Context) {
	alive, err := a.authenticator.Ping(ctx)
	if err != nil {
		logging.Warn("CLI", "Could not verify stored session: %v", err)
		return
	}
	logging.Debug("CLI", "Stored session verified: %t", alive)
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logging.Warn("CLI", "Failed to close credential store: %v", err)
	}
}

func (a *app) recipeClient() *recipes.Client {
	return recipes.NewClient(a.httpClient, a.cfg.Drupal.ResolvedAPIURL(), a.cfg.Drupal.BaseURL)
}

func (a *app) formatter(w io.Writer) (formatting.Formatter, error) {
	options, err := a.flags.FormatterOptions()
	if err != nil {
		return nil, err
	}
	options.Out = w
	if f, ok := w.(*os.File); ok {
		options.Color = term.IsTerminal(int(f.Fd()))
	}
	return formatting.New(options)
}
