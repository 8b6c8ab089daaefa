package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"recipebox/internal/credentials"
	"recipebox/pkg/logging"

	"golang.org/x/oauth2"
)

// Authenticator reconciles OAuth and session credentials into a single
// authenticated state and remembers the resolved user for its lifetime.
type Authenticator struct {
	client *Client

	// mu serialises authentication checks and guards user and method.
	mu     sync.Mutex
	user   *User
	method Method
}

// NewAuthenticator wraps client.
func NewAuthenticator(client *Client) *Authenticator {
	return &Authenticator{client: client, method: NoMethod{}}
}

// Client returns the underlying auth client.
func (a *Authenticator) Client() *Client {
	return a.client
}

// Inspector returns the state inspector.
func (a *Authenticator) Inspector() *Inspector {
	return a.client.inspector
}

// IsAuthenticated resolves the authenticated state, in order:
//  1. a user already resolved by this authenticator
//  2. the OAuth token, refreshing it once if the profile fetch fails
//  3. the session cookie
//
// Profile fetch failures yield false; the error is only non-nil when the
// credential store itself fails.
func (a *Authenticator) IsAuthenticated(ctx context.Context) (bool, error) {
	_, err := a.Authenticate(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrUserInfoFetch):
		return false, nil
	default:
		return false, err
	}
}

// Authenticate is IsAuthenticated returning the resolved user. It fails with
// ErrNotAuthenticated when no credentials are stored and with a
// *UserInfoFetchError when stored credentials were rejected.
func (a *Authenticator) Authenticate(ctx context.Context) (*User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.user != nil {
		return a.user, nil
	}

	inspector := a.client.inspector
	var lastErr error

	oauthValid, err := inspector.IsOAuthValid(ctx)
	if err != nil {
		return nil, err
	}
	if oauthValid {
		user, err := a.client.FetchOAuthUser(ctx)
		if err != nil {
			logging.Debug("Authenticator", "OAuth user info fetch failed, refreshing token: %v", err)
			if _, refreshErr := a.client.RefreshAccessToken(ctx); refreshErr != nil {
				err = refreshErr
			} else {
				user, err = a.client.FetchOAuthUser(ctx)
			}
		}
		if err == nil {
			return a.setAuthenticatedLocked(ctx, user, MethodOAuth)
		}
		lastErr = &UserInfoFetchError{Method: MethodOAuth, Err: err}
		logging.Error("Authenticator", lastErr, "OAuth authentication failed, trying session")
	}

	sessionValid, err := inspector.IsSessionValid(ctx)
	if err != nil {
		return nil, err
	}
	if sessionValid {
		user, err := a.client.FetchSessionUser(ctx)
		if err == nil {
			return a.setAuthenticatedLocked(ctx, user, MethodSession)
		}
		lastErr = &UserInfoFetchError{Method: MethodSession, Err: err}
		logging.Error("Authenticator", lastErr, "Session validation failed")
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotAuthenticated
}

func (a *Authenticator) setAuthenticatedLocked(ctx context.Context, user *User, kind MethodKind) (*User, error) {
	store := a.client.store
	switch kind {
	case MethodOAuth:
		token, _, err := store.Get(ctx, credentials.KeyAccessToken)
		if err != nil {
			return nil, err
		}
		a.method = OAuthMethod{Token: NewSecret(token)}
	case MethodSession:
		csrf, _, err := store.Get(ctx, credentials.KeyCSRFToken)
		if err != nil {
			return nil, err
		}
		a.method = SessionMethod{CSRF: NewSecret(csrf)}
	}
	a.user = user
	logging.Info("Authenticator", "Authenticated as %s via %s", user.Name, kind)
	return user, nil
}

// User returns the resolved user, or nil.
func (a *Authenticator) User() *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// Method returns the mechanism that produced the current state.
func (a *Authenticator) Method() Method {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.method
}

// Token returns the stored OAuth token, or nil when none is stored.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	return a.client.Token(ctx)
}

// Reset forgets the resolved user so the next check hits the backend again.
func (a *Authenticator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Authenticator) resetLocked() {
	a.user = nil
	a.method = NoMethod{}
}

// Logout tears down every mechanism. Backend logout calls are made for the
// mechanisms whose credentials are currently valid and are best-effort;
// local credentials and in-memory state are always cleared.
func (a *Authenticator) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.resetLocked()

	inspector := a.client.inspector
	var errs []error

	oauthValid, err := inspector.IsOAuthValid(ctx)
	if err != nil {
		logging.Warn("Authenticator", "Could not inspect OAuth state: %v", err)
	}
	if oauthValid {
		errs = append(errs, a.client.LogoutOAuth(ctx))
	} else {
		errs = append(errs, a.client.ClearOAuth(ctx))
	}

	sessionValid, err := inspector.IsSessionValid(ctx)
	if err != nil {
		logging.Warn("Authenticator", "Could not inspect session state: %v", err)
	}
	if sessionValid {
		errs = append(errs, a.client.LogoutSession(ctx))
	} else {
		errs = append(errs, a.client.ClearSession(ctx))
	}

	logging.Info("Authenticator", "Logged out (oauth=%t, session=%t)", oauthValid, sessionValid)
	return errors.Join(errs...)
}

// Ping asks the backend whether the stored session is still alive. A
// rejected session is removed locally. It reports false without a network
// call when no session cookie is stored.
func (a *Authenticator) Ping(ctx context.Context) (bool, error) {
	sessionValid, err := a.client.inspector.IsSessionValid(ctx)
	if err != nil || !sessionValid {
		return false, err
	}

	_, err = a.client.FetchSessionUser(ctx)
	if err == nil {
		return true, nil
	}

	switch StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		logging.Info("Authenticator", "Server rejected the stored session, clearing it")
		if clearErr := a.client.ClearSession(ctx); clearErr != nil {
			return false, clearErr
		}
		a.mu.Lock()
		if a.method.Kind() == MethodSession {
			a.resetLocked()
		}
		a.mu.Unlock()
		return false, nil
	default:
		return false, fmt.Errorf("session check failed: %w", err)
	}
}

// tokenRefreshed keeps the remembered OAuth method in step with the store.
func (a *Authenticator) tokenRefreshed(accessToken string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.method.Kind() == MethodOAuth {
		a.method = OAuthMethod{Token: NewSecret(accessToken)}
	}
}

func (a *Authenticator) csrfRefreshed(csrf string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.method.Kind() == MethodSession {
		a.method = SessionMethod{CSRF: NewSecret(csrf)}
	}
}
