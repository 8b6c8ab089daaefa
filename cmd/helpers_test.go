package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recipebox/internal/testing/mock"

	"github.com/stretchr/testify/require"
)

// cliEnv runs recipebox commands against a mock backend with a file
// credential store in a temporary config directory.
type cliEnv struct {
	server    *mock.DrupalServer
	configDir string
	browser   func(url string) error
}

type runResult struct {
	stdout string
	stderr string
	err    error
}

func newCLIEnv(t *testing.T, serverConfig mock.DrupalServerConfig, extraYAML ...string) *cliEnv {
	t.Helper()
	for _, key := range []string{"DRUPAL_BASE_URL", "DRUPAL_API_URL", "DRUPAL_CLIENT_ID", "DRUPAL_CLIENT_SECRET", "RECIPEBOX_STORE", "RECIPEBOX_REDIS_ADDR", "RECIPEBOX_CALLBACK_PORT"} {
		t.Setenv(key, "")
	}

	server := mock.NewDrupalServer(serverConfig)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	configYAML := fmt.Sprintf(`drupal:
  baseURL: %s
oauth:
  clientID: test-client
  redirectURI: http://localhost:0/auth/callback
credentials:
  backend: file
  dir: %s
%s`, server.URL, dir, strings.Join(extraYAML, "\n"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0600))

	return &cliEnv{
		server:    server,
		configDir: dir,
		browser:   followRedirects,
	}
}

// followRedirects plays the browser: it loads the authorization URL and
// follows the redirect back to the local callback listener.
func followRedirects(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) runResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(strings.NewReader(stdin), &stdout, &stderr)
	a.openBrowser = e.browser

	err := a.execute(context.Background(), append([]string{"--config-path", e.configDir}, args...))
	return runResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (e *cliEnv) mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	res := e.run(t, stdin, args...)
	require.NoError(t, res.err, "stderr: %s", res.stderr)
	return res.stdout
}

func (e *cliEnv) loginSession(t *testing.T) {
	t.Helper()
	e.mustRun(t, "pw\n", "auth", "login", "--session", "--username", "alice")
}

func decodeJSON(t *testing.T, raw string, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(raw), out), "output: %s", raw)
}
