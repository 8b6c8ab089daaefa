package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recipebox/internal/credentials"
	"recipebox/pkg/logging"

	"golang.org/x/oauth2"
)

// TokenResponse is the token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Lifetime returns the access-token lifetime, falling back to one hour when
// the backend did not report it.
func (t *TokenResponse) Lifetime() time.Duration {
	if t.ExpiresIn <= 0 {
		return DefaultAccessTokenLifetime
	}
	return time.Duration(t.ExpiresIn) * time.Second
}

// OAuth2Token converts the response into an oauth2.Token issued at issuedAt.
func (t *TokenResponse) OAuth2Token(issuedAt time.Time) *oauth2.Token {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    tokenType,
		Expiry:       issuedAt.Add(t.Lifetime()),
	}
}

// ExchangeCodeForTokens trades an authorization code for tokens and
// persists them.
func (c *Client) ExchangeCodeForTokens(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
		"redirect_url":  {redirectURI},
	}

	token, err := c.doTokenRequest(ctx, data)
	if err != nil {
		logging.Error("TokenExchange", err, "Authorization code exchange failed")
		return nil, err
	}
	if err := c.saveTokens(ctx, token); err != nil {
		return nil, err
	}
	logging.Info("TokenExchange", "Authorization code exchanged (expires in %s)", token.Lifetime())
	return token, nil
}

// RefreshAccessToken mints a new access token from the stored refresh
// token. Concurrent callers share one request. When the backend rejects the
// refresh every OAuth credential is cleared before the error is returned;
// a cancelled or timed-out context leaves them in place.
func (c *Client) RefreshAccessToken(ctx context.Context) (*TokenResponse, error) {
	result, err, shared := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		return c.doRefresh(ctx)
	})
	if shared {
		logging.Debug("TokenExchange", "Joined in-flight token refresh")
	}
	if err != nil {
		return nil, err
	}
	return result.(*TokenResponse), nil
}

func (c *Client) doRefresh(ctx context.Context) (*TokenResponse, error) {
	refreshToken, ok, err := c.store.Get(ctx, credentials.KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh token: %w", err)
	}
	if !ok || refreshToken == "" {
		return nil, &NoRefreshTokenError{}
	}

	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	}

	token, err := c.doTokenRequest(ctx, data)
	if err == nil {
		err = c.saveTokens(ctx, token)
	}
	if err != nil {
		if ctx.Err() != nil {
			logging.Warn("TokenExchange", "Token refresh interrupted, keeping OAuth credentials: %v", err)
			return nil, err
		}
		logging.Error("TokenExchange", err, "Token refresh failed, clearing OAuth credentials")
		if clearErr := c.ClearOAuth(ctx); clearErr != nil {
			logging.Error("TokenExchange", clearErr, "Failed to clear OAuth credentials")
		}
		return nil, err
	}

	logging.Info("TokenExchange", "Access token refreshed (expires in %s)", token.Lifetime())
	return token, nil
}

// VerifyState consumes the stored state nonce if it equals received. On a
// mismatch or when nothing is stored the store is left untouched.
func (c *Client) VerifyState(ctx context.Context, received string) (bool, error) {
	stored, ok, err := c.store.Get(ctx, credentials.KeyState)
	if err != nil {
		return false, fmt.Errorf("failed to read authorization state: %w", err)
	}
	if !ok || stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(received)) != 1 {
		return false, nil
	}
	if err := c.store.Remove(ctx, credentials.KeyState); err != nil {
		return false, fmt.Errorf("failed to consume authorization state: %w", err)
	}
	return true, nil
}

// CompleteAuthFlow finishes a login from the callback parameters. A state
// mismatch is terminal and the code is never exchanged.
func (c *Client) CompleteAuthFlow(ctx context.Context, code, state, redirectURI string) (*TokenResponse, error) {
	_, hadState, err := c.store.Get(ctx, credentials.KeyState)
	if err != nil {
		return nil, err
	}

	ok, err := c.VerifyState(ctx, state)
	if err != nil {
		return nil, err
	}
	if !ok {
		logging.Audit("AuthFlow", "state_mismatch", slog.Bool("state_stored", hadState))
		return nil, &StateMismatchError{Missing: !hadState}
	}
	if code == "" {
		return nil, &TokenExchangeError{GrantType: "authorization_code", Reason: "callback carried no authorization code"}
	}
	return c.ExchangeCodeForTokens(ctx, code, redirectURI)
}

// ClearOAuth removes every OAuth credential, including a pending state.
func (c *Client) ClearOAuth(ctx context.Context) error {
	removed, err := c.store.RemoveMatching(ctx, credentials.OAuthPrefix)
	if err != nil {
		return fmt.Errorf("failed to clear OAuth credentials: %w", err)
	}
	logging.Debug("TokenExchange", "Cleared %d OAuth credential entries", removed)
	return nil
}

// LogoutOAuth tells the backend to end the session tied to the bearer token,
// then clears OAuth credentials. The server call is best-effort.
func (c *Client) LogoutOAuth(ctx context.Context) error {
	accessToken, ok, err := c.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		return err
	}
	if ok {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(logoutEndpoint), nil)
		if reqErr == nil {
			req.Header.Set("Authorization", "Bearer "+accessToken)
			if resp, doErr := c.httpClient.Do(req); doErr != nil {
				logging.Warn("TokenExchange", "Server logout failed: %v", doErr)
			} else {
				drain(resp)
			}
		}
	}
	return c.ClearOAuth(ctx)
}

// Token returns the stored OAuth credentials as an oauth2.Token, or nil
// when neither an access token nor a refresh token is stored. The access
// token is empty once it has expired from the store.
func (c *Client) Token(ctx context.Context) (*oauth2.Token, error) {
	accessToken, hasAccess, err := c.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	refreshToken, hasRefresh, err := c.store.Get(ctx, credentials.KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	if !hasAccess && !hasRefresh {
		return nil, nil
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	if hasAccess {
		expiresAt, _, err := c.inspector.ExpiresAt(ctx)
		if err != nil {
			return nil, err
		}
		token.Expiry = expiresAt
	}
	return token, nil
}

func (c *Client) doTokenRequest(ctx context.Context, data url.Values) (*TokenResponse, error) {
	grantType := data.Get("grant_type")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(tokenEndpoint), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &TokenExchangeError{GrantType: grantType, Reason: "could not build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TokenExchangeError{GrantType: grantType, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TokenExchangeError{GrantType: grantType, Reason: "could not read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{
			GrantType: grantType,
			Reason:    fmt.Sprintf("status %d", resp.StatusCode),
			Err:       oauthErrorFromBody(body),
		}
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &TokenExchangeError{GrantType: grantType, Reason: "malformed response", Err: err}
	}
	if token.AccessToken == "" {
		return nil, &TokenExchangeError{GrantType: grantType, Reason: "response carried no access token"}
	}
	return &token, nil
}

// oauthErrorFromBody extracts an RFC 6749 error from a token response body.
func oauthErrorFromBody(body []byte) error {
	var payload struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Message     string `json:"message"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return nil
	}
	switch {
	case payload.Error != "" && payload.Description != "":
		return fmt.Errorf("%s: %s", payload.Error, payload.Description)
	case payload.Error != "":
		return errors.New(payload.Error)
	case payload.Message != "":
		return errors.New(payload.Message)
	}
	return nil
}

// saveTokens persists a token response. The access token and its expiry
// share one expiry instant; the refresh token lives RefreshTokenTTL.
func (c *Client) saveTokens(ctx context.Context, resp *TokenResponse) error {
	now := c.clock.Now()
	token := resp.OAuth2Token(now)
	opts := c.options().WithExpiry(token.Expiry)

	if err := c.store.Set(ctx, credentials.KeyAccessToken, token.AccessToken, opts); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if token.RefreshToken != "" {
		refreshOpts := c.options().WithExpiry(now.Add(c.cfg.RefreshTokenTTL))
		if err := c.store.Set(ctx, credentials.KeyRefreshToken, token.RefreshToken, refreshOpts); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}
	expiresAtValue := strconv.FormatInt(token.Expiry.UnixMilli(), 10)
	if err := c.store.Set(ctx, credentials.KeyExpiresAt, expiresAtValue, opts); err != nil {
		return fmt.Errorf("failed to store token expiry: %w", err)
	}
	return nil
}
