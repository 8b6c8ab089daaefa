package callback

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	server := NewServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	redirectURI, err := server.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(server.Stop)
	return server, redirectURI
}

func TestServer_Success(t *testing.T) {
	server, redirectURI := startServer(t)
	assert.Contains(t, redirectURI, DefaultPath)
	assert.NotZero(t, server.Port())

	resp, err := http.Get(redirectURI + "?code=abc&state=xyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "You are signed in")
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := server.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Code)
	assert.Equal(t, "xyz", result.State)
	assert.False(t, result.IsError())
	assert.NoError(t, result.Err())
}

func TestServer_ProviderError(t *testing.T) {
	server, redirectURI := startServer(t)

	resp, err := http.Get(redirectURI + "?error=access_denied&error_description=%3Cb%3Enope%3C%2Fb%3E")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "access_denied")
	assert.NotContains(t, string(body), "<b>nope</b>", "description must be escaped")

	result, err := server.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.EqualError(t, result.Err(), "authorization failed: access_denied: <b>nope</b>")
}

func TestServer_SingleUse(t *testing.T) {
	_, redirectURI := startServer(t)

	first, err := http.Get(redirectURI + "?code=one&state=s")
	require.NoError(t, err)
	first.Body.Close()

	second, err := http.Get(redirectURI + "?code=two&state=s")
	require.NoError(t, err)
	second.Body.Close()

	assert.Equal(t, http.StatusBadRequest, second.StatusCode)
}

func TestServer_WaitHonoursContext(t *testing.T) {
	server, _ := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := server.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewServerForRedirect(t *testing.T) {
	server, err := NewServerForRedirect("http://localhost:4321/oauth/done")
	require.NoError(t, err)
	assert.Equal(t, 4321, server.Port())
	assert.Equal(t, "http://localhost:4321/oauth/done", server.RedirectURI())

	_, err = NewServerForRedirect("http://localhost:abc/x")
	assert.Error(t, err)
}
