package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"recipebox/internal/credentials"
	"recipebox/internal/testing/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeCodeForTokens(t *testing.T) {
	env := newTestEnv(t)

	token := env.loginOAuth(t)
	now := env.clock.Now()

	access, ok := env.get(t, credentials.KeyAccessToken)
	require.True(t, ok)
	assert.Equal(t, token.AccessToken, access)

	refresh, ok := env.get(t, credentials.KeyRefreshToken)
	require.True(t, ok)
	assert.Equal(t, token.RefreshToken, refresh)

	expiresAt, ok, err := env.client.Inspector().ExpiresAt(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, now.Add(3600*time.Second), expiresAt, time.Second)

	assert.WithinDuration(t, now.Add(3600*time.Second), env.store.optionsFor(credentials.KeyAccessToken).Expires, time.Second)
	assert.WithinDuration(t, now.Add(30*24*time.Hour), env.store.optionsFor(credentials.KeyRefreshToken).Expires, time.Second)
	assert.Equal(t, http.SameSiteStrictMode, env.store.optionsFor(credentials.KeyAccessToken).SameSite)
	assert.False(t, env.store.optionsFor(credentials.KeyAccessToken).Secure, "plain http backend")

	valid, err := env.client.Inspector().IsOAuthValid(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestExchangeCodeForTokens_FixedResponse(t *testing.T) {
	forms := make(chan url.Values, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		forms <- r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"t1","refresh_token":"r1","expires_in":3600}`))
	}))
	defer server.Close()

	store := newRecordingStore()
	client := NewClient(store, Config{BaseURL: server.URL, ClientID: "cid", ClientSecret: "csecret"})

	before := time.Now()
	_, err := client.ExchangeCodeForTokens(context.Background(), "code123", testRedirectURI)
	require.NoError(t, err)

	form := <-forms
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "code123", form.Get("code"))
	assert.Equal(t, "cid", form.Get("client_id"))
	assert.Equal(t, "csecret", form.Get("client_secret"))
	assert.Equal(t, testRedirectURI, form.Get("redirect_url"))

	access, _, _ := store.Get(context.Background(), credentials.KeyAccessToken)
	refresh, _, _ := store.Get(context.Background(), credentials.KeyRefreshToken)
	expiresAt, _, _ := store.Get(context.Background(), credentials.KeyExpiresAt)
	assert.Equal(t, "t1", access)
	assert.Equal(t, "r1", refresh)

	millis, err := strconv.ParseInt(expiresAt, 10, 64)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(time.Hour), time.UnixMilli(millis), 2*time.Second)
	assert.WithinDuration(t, before.Add(30*24*time.Hour), store.optionsFor(credentials.KeyRefreshToken).Expires, 2*time.Second)
}

func TestExchangeCodeForTokens_MissingExpiresIn(t *testing.T) {
	env := newTestEnv(t, mock.DrupalServerConfig{OmitExpiresIn: true})

	token := env.loginOAuth(t)
	assert.Equal(t, DefaultAccessTokenLifetime, token.Lifetime())

	expiresAt, ok, err := env.client.Inspector().ExpiresAt(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, env.clock.Now().Add(time.Hour), expiresAt, time.Second)
}

func TestExchangeCodeForTokens_Rejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.ExchangeCodeForTokens(context.Background(), "not-a-code", testRedirectURI)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExchange)

	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, "authorization_code", exchangeErr.GrantType)
	assert.Contains(t, err.Error(), "invalid_grant")

	keys, err := env.store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestExchangeCodeForTokens_NoAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer server.Close()

	client := NewClient(credentials.NewMemoryStore(), Config{BaseURL: server.URL, ClientID: "cid"})
	_, err := client.ExchangeCodeForTokens(context.Background(), "code", testRedirectURI)
	assert.ErrorIs(t, err, ErrTokenExchange)
}

func TestRefreshAccessToken(t *testing.T) {
	env := newTestEnv(t)
	first := env.loginOAuth(t)

	refreshed, err := env.client.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, refreshed.AccessToken)

	access, _ := env.get(t, credentials.KeyAccessToken)
	refresh, _ := env.get(t, credentials.KeyRefreshToken)
	assert.Equal(t, refreshed.AccessToken, access)
	assert.Equal(t, refreshed.RefreshToken, refresh, "rotated refresh token is stored")
	assert.Equal(t, 2, env.server.Calls("/oauth/token"))
}

func TestRefreshAccessToken_NoRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	env.setAccessToken(t, "t1", env.clock.Now().Add(time.Hour))

	_, err := env.client.RefreshAccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, env.server.Calls("/oauth/token"))

	_, ok := env.get(t, credentials.KeyAccessToken)
	assert.True(t, ok, "nothing is cleared when there is nothing to refresh with")
}

func TestRefreshAccessToken_FailureClearsOAuth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.InitiateAuthFlow(ctx, testRedirectURI)
	require.NoError(t, err)
	env.setAccessToken(t, "t1", env.clock.Now().Add(time.Hour))
	env.set(t, credentials.KeyRefreshToken, "revoked-refresh-token")
	env.loginSession(t)

	_, err = env.client.RefreshAccessToken(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExchange)

	keys, err := env.store.Keys(ctx)
	require.NoError(t, err)
	for _, key := range keys {
		assert.NotContains(t, key, credentials.OAuthPrefix)
	}
	_, ok := env.get(t, credentials.KeySession)
	assert.True(t, ok, "session credentials survive an OAuth failure")
}

func TestRefreshAccessToken_ConcurrentCallsShareOneRequest(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"t2","refresh_token":"r2","expires_in":3600}`))
	}))
	defer server.Close()

	store := credentials.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), credentials.KeyRefreshToken, "r1", credentials.SetOptions{}))
	client := NewClient(store, Config{BaseURL: server.URL, ClientID: "cid"})

	const callers = 5
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			token, err := client.RefreshAccessToken(context.Background())
			if err == nil {
				results[i] = token.AccessToken
			}
		}(i)
	}
	started.Wait()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, token := range results {
		assert.Equal(t, "t2", token)
	}
}

func TestVerifyState_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.InitiateAuthFlow(ctx, testRedirectURI, WithState("abc123"))
	require.NoError(t, err)

	ok, err := env.client.VerifyState(ctx, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	_, stored := env.get(t, credentials.KeyState)
	assert.True(t, stored, "a mismatch leaves the state in place")

	ok, err = env.client.VerifyState(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.client.VerifyState(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, ok, "state is consumed on first use")
}

func TestVerifyState_NothingStored(t *testing.T) {
	env := newTestEnv(t)

	ok, err := env.client.VerifyState(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompleteAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	authURL, err := env.client.InitiateAuthFlow(ctx, testRedirectURI)
	require.NoError(t, err)

	// Play the browser: follow the authorize endpoint to its redirect.
	browser := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := browser.Get(authURL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	callback, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	token, err := env.client.CompleteAuthFlow(ctx, callback.Query().Get("code"), callback.Query().Get("state"), testRedirectURI)
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)

	_, ok := env.get(t, credentials.KeyState)
	assert.False(t, ok)

	user, err := env.client.FetchOAuthUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestCompleteAuthFlow_StateMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.InitiateAuthFlow(ctx, testRedirectURI, WithState("expected"))
	require.NoError(t, err)

	_, err = env.client.CompleteAuthFlow(ctx, env.server.IssueCode(), "forged", testRedirectURI)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStateMismatch)

	var mismatch *StateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.False(t, mismatch.Missing)
	assert.Zero(t, env.server.Calls("/oauth/token"), "the code is never exchanged")
}

func TestCompleteAuthFlow_NoPendingState(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.CompleteAuthFlow(context.Background(), "code", "state", testRedirectURI)
	var mismatch *StateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.Missing)
}

func TestCompleteAuthFlow_EmptyCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.InitiateAuthFlow(ctx, testRedirectURI, WithState("s"))
	require.NoError(t, err)

	_, err = env.client.CompleteAuthFlow(ctx, "", "s", testRedirectURI)
	assert.ErrorIs(t, err, ErrTokenExchange)
	assert.Zero(t, env.server.Calls("/oauth/token"))
}

func TestRefreshAccessToken_CancelledKeepsOAuth(t *testing.T) {
	env := newTestEnv(t)
	env.loginOAuth(t)
	refreshToken, _ := env.get(t, credentials.KeyRefreshToken)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.client.RefreshAccessToken(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	stored, ok := env.get(t, credentials.KeyRefreshToken)
	assert.True(t, ok, "an interrupted refresh keeps the refresh token")
	assert.Equal(t, refreshToken, stored)
	_, ok = env.get(t, credentials.KeyAccessToken)
	assert.True(t, ok)
}

func TestClientToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, err := env.client.Token(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)

	issued := env.loginOAuth(t)
	token, err = env.client.Token(ctx)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, issued.AccessToken, token.AccessToken)
	assert.Equal(t, issued.RefreshToken, token.RefreshToken)
	assert.Equal(t, "Bearer", token.Type())
	assert.WithinDuration(t, env.clock.Now().Add(time.Hour), token.Expiry, time.Second)
}

func TestClientToken_RefreshTokenOnly(t *testing.T) {
	env := newTestEnv(t)
	env.set(t, credentials.KeyRefreshToken, "r1")

	token, err := env.client.Token(context.Background())
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Empty(t, token.AccessToken)
	assert.Equal(t, "r1", token.RefreshToken)
	assert.True(t, token.Expiry.IsZero())
}

func TestTokenResponse_OAuth2Token(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	token := (&TokenResponse{AccessToken: "a", RefreshToken: "r", ExpiresIn: 300}).OAuth2Token(issuedAt)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, issuedAt.Add(300*time.Second), token.Expiry)

	token = (&TokenResponse{AccessToken: "a"}).OAuth2Token(issuedAt)
	assert.Equal(t, issuedAt.Add(DefaultAccessTokenLifetime), token.Expiry)
}

func TestLogoutOAuth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.loginOAuth(t)

	require.NoError(t, env.client.LogoutOAuth(ctx))
	assert.Equal(t, 1, env.server.Calls("/user/logout"))
	assert.Contains(t, env.server.LastHeaders("/user/logout").Get("Authorization"), "Bearer ")

	keys, err := env.store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLogoutOAuth_ServerFailureStillClears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.loginOAuth(t)
	env.server.FailNext("/user/logout", http.StatusInternalServerError, 1)

	require.NoError(t, env.client.LogoutOAuth(ctx))
	_, ok := env.get(t, credentials.KeyAccessToken)
	assert.False(t, ok)
}
