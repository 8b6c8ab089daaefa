package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"recipebox/internal/auth"
	"recipebox/internal/cli"
	"recipebox/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersion(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	rootCmd := newRootCmd(newApp(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}))

	assert.Equal(t, "recipebox", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)

	found := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"version", "auth", "recipes"} {
		assert.True(t, found[name], "missing subcommand %s", name)
	}

	authCmd, _, err := rootCmd.Find([]string{"auth"})
	require.NoError(t, err)
	authSubs := map[string]bool{}
	for _, c := range authCmd.Commands() {
		authSubs[c.Name()] = true
	}
	for _, name := range []string{"login", "callback", "status", "whoami", "refresh", "logout"} {
		assert.True(t, authSubs[name], "missing auth subcommand %s", name)
	}

	for _, flag := range []string{"output", "no-headers", "quiet", "debug", "log-level", "log-format", "config-path"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestVersionFlag(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)
	SetVersion("1.0.0")

	var out bytes.Buffer
	a := newApp(strings.NewReader(""), &out, &bytes.Buffer{})
	require.NoError(t, a.execute(context.Background(), []string{"--version"}))
	assert.Equal(t, "recipebox version 1.0.0\n", out.String())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitCodeSuccess},
		{name: "generic", err: errors.New("boom"), want: ExitCodeError},
		{name: "auth required", err: &cli.AuthRequiredError{}, want: ExitCodeAuthRequired},
		{name: "wrapped auth required", err: fmt.Errorf("x: %w", &cli.AuthRequiredError{}), want: ExitCodeAuthRequired},
		{name: "auth expired", err: &cli.AuthExpiredError{}, want: ExitCodeAuthRequired},
		{name: "auth failed", err: &cli.AuthFailedError{}, want: ExitCodeAuthFailed},
		{name: "classified not authenticated", err: cli.ClassifyAuthError(auth.ErrNotAuthenticated, "u"), want: ExitCodeAuthRequired},
		{name: "classified state mismatch", err: cli.ClassifyAuthError(&auth.StateMismatchError{}, "u"), want: ExitCodeAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestInvalidLogFormat(t *testing.T) {
	a := newApp(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	err := a.execute(context.Background(), []string{"--log-format", "xml", "version"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log format")
}

func TestInvalidLogLevel(t *testing.T) {
	a := newApp(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	err := a.execute(context.Background(), []string{"--log-level", "loud", "version"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log level "loud"`)
}

func TestLogLevelFlag(t *testing.T) {
	a := newApp(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, a.execute(context.Background(), []string{"--log-level", "error", "version"}))

	level, err := a.flags.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.LevelError, level)
}
