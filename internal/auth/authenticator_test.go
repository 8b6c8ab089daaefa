package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"recipebox/internal/credentials"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_NoCredentials(t *testing.T) {
	env := newTestEnv(t)

	ok, err := env.auth.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, MethodNone, env.auth.Method().Kind())
	assert.Nil(t, env.auth.User())

	_, err = env.auth.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, env.server.Calls("/oauth/userinfo"))
	assert.Zero(t, env.server.Calls("/user/me"))
}

func TestAuthenticator_OAuth(t *testing.T) {
	env := newTestEnv(t)
	token := env.loginOAuth(t)
	ctx := context.Background()

	ok, err := env.auth.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	method, isOAuth := env.auth.Method().(OAuthMethod)
	require.True(t, isOAuth)
	assert.Equal(t, token.AccessToken, method.Token.Value())
	assert.Equal(t, "alice", env.auth.User().Name)

	ok, err = env.auth.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, env.server.Calls("/oauth/userinfo"), "resolved user is remembered")

	env.auth.Reset()
	assert.Nil(t, env.auth.User())
	ok, _ = env.auth.IsAuthenticated(ctx)
	assert.True(t, ok)
	assert.Equal(t, 2, env.server.Calls("/oauth/userinfo"))
}

func TestAuthenticator_OAuthRefreshesOnceWhenProfileFetchFails(t *testing.T) {
	env := newTestEnv(t)
	env.setAccessToken(t, "unknown-to-server", env.clock.Now().Add(time.Hour))
	env.set(t, credentials.KeyRefreshToken, env.server.IssueRefreshToken())

	user, err := env.auth.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, MethodOAuth, env.auth.Method().Kind())
	assert.Equal(t, 1, env.server.Calls("/oauth/token"))
	assert.Equal(t, 2, env.server.Calls("/oauth/userinfo"))

	access, _ := env.get(t, credentials.KeyAccessToken)
	assert.NotEqual(t, "unknown-to-server", access)
}

func TestAuthenticator_FallsBackToSession(t *testing.T) {
	env := newTestEnv(t)
	env.loginSession(t)
	env.setAccessToken(t, "unknown-to-server", env.clock.Now().Add(time.Hour))
	env.set(t, credentials.KeyRefreshToken, "unknown-refresh-token")

	ok, err := env.auth.IsAuthenticated(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	method, isSession := env.auth.Method().(SessionMethod)
	require.True(t, isSession)
	csrf, _ := env.get(t, credentials.KeyCSRFToken)
	assert.Equal(t, csrf, method.CSRF.Value())

	_, oauthLeft := env.get(t, credentials.KeyAccessToken)
	assert.False(t, oauthLeft, "failed refresh cleared OAuth credentials")
}

func TestAuthenticator_SessionOnly(t *testing.T) {
	env := newTestEnv(t)
	env.loginSession(t)

	user, err := env.auth.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", user.ID)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, MethodSession, env.auth.Method().Kind())
	assert.Zero(t, env.server.Calls("/oauth/userinfo"))
}

func TestAuthenticator_SessionRejected(t *testing.T) {
	env := newTestEnv(t)
	env.loginSession(t)
	env.server.RevokeSessions()

	ok, err := env.auth.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.auth.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserInfoFetch)

	var fetchErr *UserInfoFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, MethodSession, fetchErr.Method)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
}

func TestAuthenticator_LogoutBothMechanisms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.loginOAuth(t)
	env.loginSession(t)
	_, err := env.client.InitiateAuthFlow(ctx, testRedirectURI)
	require.NoError(t, err)

	ok, err := env.auth.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, env.auth.Logout(ctx))

	for _, key := range allKeys {
		_, present := env.get(t, key)
		assert.False(t, present, key)
	}
	assert.Nil(t, env.auth.User())
	assert.Equal(t, MethodNone, env.auth.Method().Kind())
	assert.Zero(t, env.server.SessionCount())
	assert.Equal(t, 2, env.server.Calls("/user/logout"))
}

func TestAuthenticator_LogoutClearsStaleCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setAccessToken(t, "expired", env.clock.Now().Add(-time.Minute))
	env.set(t, credentials.KeyRefreshToken, "leftover")

	require.NoError(t, env.auth.Logout(ctx))

	keys, err := env.store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Zero(t, env.server.Calls("/user/logout"), "no server call for invalid credentials")
}

func TestAuthenticator_Ping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alive, err := env.auth.Ping(ctx)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Zero(t, env.server.Calls("/user/me"), "no session, no request")

	env.loginSession(t)
	ok, _ := env.auth.IsAuthenticated(ctx)
	require.True(t, ok)

	alive, err = env.auth.Ping(ctx)
	require.NoError(t, err)
	assert.True(t, alive)

	env.server.RevokeSessions()
	alive, err = env.auth.Ping(ctx)
	require.NoError(t, err)
	assert.False(t, alive)

	for _, key := range credentials.SessionKeys {
		_, present := env.get(t, key)
		assert.False(t, present, key)
	}
	assert.Equal(t, MethodNone, env.auth.Method().Kind())
	assert.Nil(t, env.auth.User())
}

func TestAuthenticator_PingServerError(t *testing.T) {
	env := newTestEnv(t)
	env.loginSession(t)
	env.server.FailNext("/user/me", http.StatusBadGateway, 1)

	alive, err := env.auth.Ping(context.Background())
	require.Error(t, err)
	assert.False(t, alive)

	_, present := env.get(t, credentials.KeySession)
	assert.True(t, present, "transient failures keep the session")
}
