package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recipebox/internal/credentials"
	"recipebox/pkg/logging"
)

// CurrentUser is the user summary returned by a session login.
type CurrentUser struct {
	UID   string   `json:"uid"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

// SessionLoginResponse is the /user/login payload.
type SessionLoginResponse struct {
	CurrentUser *CurrentUser `json:"current_user,omitempty"`
	CSRFToken   string       `json:"csrf_token"`
	LogoutToken string       `json:"logout_token,omitempty"`
}

// LoginWithSession authenticates with a username and password. On success
// the session cookie, CSRF token and logout token are stored and the
// payload is returned as received.
func (c *Client) LoginWithSession(ctx context.Context, username, password string) (*SessionLoginResponse, error) {
	payload, err := json.Marshal(map[string]string{"name": username, "pass": password})
	if err != nil {
		return nil, &SessionLoginError{Username: username, Reason: "could not encode credentials", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(loginEndpoint), bytes.NewReader(payload))
	if err != nil {
		return nil, &SessionLoginError{Username: username, Reason: "could not build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = &SessionLoginError{Username: username, Reason: "request failed", Err: err}
		logging.Error("SessionLogin", err, "Session login failed")
		return nil, err
	}
	if err := CheckResponse(resp); err != nil {
		err = &SessionLoginError{Username: username, Reason: "rejected by server", Err: err}
		logging.Error("SessionLogin", err, "Session login failed")
		return nil, err
	}
	defer resp.Body.Close()

	var login SessionLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return nil, &SessionLoginError{Username: username, Reason: "malformed response", Err: err}
	}
	if login.CSRFToken == "" {
		err := &SessionLoginError{Username: username, Reason: "response carried no csrf token"}
		logging.Error("SessionLogin", err, "Session login failed")
		return nil, err
	}

	if err := c.saveSession(ctx, resp, &login); err != nil {
		return nil, err
	}
	logging.Info("SessionLogin", "Session established for %s", username)
	return &login, nil
}

func (c *Client) saveSession(ctx context.Context, resp *http.Response, login *SessionLoginResponse) error {
	opts := c.options()

	if cookie := findSessionCookie(resp.Cookies()); cookie != nil {
		cookieOpts := opts
		if expires := cookieExpiry(cookie, c.clock.Now()); !expires.IsZero() {
			cookieOpts = opts.WithExpiry(expires)
		}
		if err := c.store.Set(ctx, credentials.KeySession, cookie.Name+"="+cookie.Value, cookieOpts); err != nil {
			return fmt.Errorf("failed to store session cookie: %w", err)
		}
	} else {
		logging.Warn("SessionLogin", "Login response set no session cookie")
	}

	if err := c.store.Set(ctx, credentials.KeyCSRFToken, login.CSRFToken, opts); err != nil {
		return fmt.Errorf("failed to store csrf token: %w", err)
	}
	if login.LogoutToken != "" {
		if err := c.store.Set(ctx, credentials.KeyLogoutToken, login.LogoutToken, opts); err != nil {
			return fmt.Errorf("failed to store logout token: %w", err)
		}
	}
	return nil
}

// findSessionCookie picks the Drupal session cookie (SESS* or SSESS* on
// https sites), falling back to the first cookie set.
func findSessionCookie(cookies []*http.Cookie) *http.Cookie {
	for _, cookie := range cookies {
		if strings.HasPrefix(cookie.Name, "SESS") || strings.HasPrefix(cookie.Name, "SSESS") {
			return cookie
		}
	}
	if len(cookies) > 0 {
		return cookies[0]
	}
	return nil
}

func cookieExpiry(cookie *http.Cookie, now time.Time) time.Time {
	if cookie.MaxAge > 0 {
		return now.Add(time.Duration(cookie.MaxAge) * time.Second)
	}
	return cookie.Expires
}

// RefreshCsrfToken fetches a fresh CSRF token for the current session and
// stores it. Concurrent callers share one request.
func (c *Client) RefreshCsrfToken(ctx context.Context) (string, error) {
	result, err, _ := c.refreshGroup.Do("csrf", func() (interface{}, error) {
		return c.doRefreshCsrf(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) doRefreshCsrf(ctx context.Context) (string, error) {
	req, err := c.newCredentialedRequest(ctx, http.MethodGet, sessionTokenPath, nil)
	if err != nil {
		return "", &CsrfRefreshError{Reason: "could not build request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = &CsrfRefreshError{Reason: "request failed", Err: err}
		logging.Error("SessionLogin", err, "CSRF token refresh failed")
		return "", err
	}
	if err := CheckResponse(resp); err != nil {
		err = &CsrfRefreshError{Reason: "rejected by server", Err: err}
		logging.Error("SessionLogin", err, "CSRF token refresh failed")
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", &CsrfRefreshError{Reason: "could not read response", Err: err}
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		err := &CsrfRefreshError{Reason: "empty token"}
		logging.Error("SessionLogin", err, "CSRF token refresh failed")
		return "", err
	}

	if err := c.store.Set(ctx, credentials.KeyCSRFToken, token, c.options()); err != nil {
		return "", &CsrfRefreshError{Reason: "could not store token", Err: err}
	}
	logging.Debug("SessionLogin", "CSRF token refreshed")
	return token, nil
}

// LogoutSession ends the server session when a logout token is stored, then
// removes the session credentials. The server call is best-effort; local
// removal always happens.
func (c *Client) LogoutSession(ctx context.Context) error {
	logoutToken, ok, err := c.store.Get(ctx, credentials.KeyLogoutToken)
	if err != nil {
		logging.Warn("SessionLogin", "Could not read logout token: %v", err)
	}
	if ok && logoutToken != "" {
		path := logoutEndpoint + "?" + url.Values{"_format": {"json"}, "token": {logoutToken}}.Encode()
		if req, reqErr := c.newCredentialedRequest(ctx, http.MethodGet, path, nil); reqErr != nil {
			logging.Warn("SessionLogin", "Server logout skipped: %v", reqErr)
		} else {
			req.Header.Set(csrfHeader, logoutToken)
			if resp, doErr := c.httpClient.Do(req); doErr != nil {
				logging.Warn("SessionLogin", "Server logout failed: %v", doErr)
			} else {
				drain(resp)
			}
		}
	}
	return c.ClearSession(ctx)
}

// ClearSession removes the session cookie, CSRF token and logout token.
func (c *Client) ClearSession(ctx context.Context) error {
	var errs []error
	for _, key := range credentials.SessionKeys {
		if err := c.store.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
