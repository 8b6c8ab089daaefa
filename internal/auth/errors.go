package auth

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinels matched by the concrete error types below through errors.Is.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenExchange    = errors.New("token exchange failed")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrSessionLogin     = errors.New("session login failed")
	ErrCsrfRefresh      = errors.New("csrf token refresh failed")
	ErrStateMismatch    = errors.New("authorization state mismatch")
	ErrUserInfoFetch    = errors.New("user info fetch failed")
)

// TokenExchangeError is returned when the token endpoint rejects a grant or
// answers without an access token.
type TokenExchangeError struct {
	GrantType string
	Reason    string
	Err       error
}

func (e *TokenExchangeError) Error() string {
	msg := fmt.Sprintf("token exchange (%s) failed: %s", e.GrantType, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenExchangeError) Unwrap() error        { return e.Err }
func (e *TokenExchangeError) Is(target error) bool { return target == ErrTokenExchange }

// NoRefreshTokenError is returned by a refresh attempt with nothing stored.
type NoRefreshTokenError struct{}

func (e *NoRefreshTokenError) Error() string        { return ErrNoRefreshToken.Error() }
func (e *NoRefreshTokenError) Is(target error) bool { return target == ErrNoRefreshToken }

// SessionLoginError reports bad credentials or a malformed login response.
type SessionLoginError struct {
	Username string
	Reason   string
	Err      error
}

func (e *SessionLoginError) Error() string {
	msg := fmt.Sprintf("session login for %q failed: %s", e.Username, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionLoginError) Unwrap() error        { return e.Err }
func (e *SessionLoginError) Is(target error) bool { return target == ErrSessionLogin }

// CsrfRefreshError reports a failed /session/token call.
type CsrfRefreshError struct {
	Reason string
	Err    error
}

func (e *CsrfRefreshError) Error() string {
	msg := "csrf token refresh failed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CsrfRefreshError) Unwrap() error        { return e.Err }
func (e *CsrfRefreshError) Is(target error) bool { return target == ErrCsrfRefresh }

// StateMismatchError is a terminal failure of an OAuth callback. The login
// attempt must be restarted; it is never retried.
type StateMismatchError struct {
	// Missing is true when no state was stored at all.
	Missing bool
}

func (e *StateMismatchError) Error() string {
	if e.Missing {
		return "authorization state mismatch: no login in progress, restart the login flow"
	}
	return "authorization state mismatch: the callback does not belong to this login, restart the login flow"
}

func (e *StateMismatchError) Is(target error) bool { return target == ErrStateMismatch }

// UserInfoFetchError reports that no user profile could be fetched after
// every recovery path was tried.
type UserInfoFetchError struct {
	Method MethodKind
	Err    error
}

func (e *UserInfoFetchError) Error() string {
	return fmt.Sprintf("failed to fetch user info via %s: %v", e.Method, e.Err)
}

func (e *UserInfoFetchError) Unwrap() error        { return e.Err }
func (e *UserInfoFetchError) Is(target error) bool { return target == ErrUserInfoFetch }

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// HTTPStatusError carries a non-2xx backend response.
type HTTPStatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// CheckResponse returns nil for 2xx responses and an *HTTPStatusError
// otherwise. The body of a failed response is consumed and closed.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &HTTPStatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
	if resp.Request != nil {
		statusErr.Method = resp.Request.Method
		statusErr.URL = resp.Request.URL.Redacted()
	}
	return statusErr
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
