package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"recipebox/internal/credentials"
	"recipebox/pkg/logging"

	"github.com/google/uuid"
)

// RequestIDHeader correlates the attempts of one logical request.
const RequestIDHeader = "X-Request-ID"

// Transport attaches the active credentials to outgoing requests and
// recovers once from a rejected credential: a 401 under OAuth triggers a
// token refresh, a 403 under a session triggers a CSRF token refresh. The
// request is then replayed exactly once. When recovery fails the original
// response is returned.
type Transport struct {
	Base http.RoundTripper
	Auth *Authenticator

	mu         sync.Mutex
	lastMinted string
}

// NewHTTPClient returns an http.Client whose requests go through Transport.
// A nil base uses http.DefaultTransport.
func NewHTTPClient(auth *Authenticator, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &Transport{Base: base, Auth: auth}}
}

// attachment records which credential a request was sent with.
type attachment int

const (
	attachedNone attachment = iota
	attachedOAuth
	attachedSession
)

// RoundTrip implements http.RoundTripper. One call refreshes the access
// token at most once, whether ahead of the first attempt or after a 401.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// Attempts send rewound copies, so the original body is ours to close.
	if rewindable(req) {
		defer req.Body.Close()
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	resp, first, err := t.send(req, requestID, true)
	if err != nil {
		return nil, err
	}

	if first.refreshed && resp.StatusCode == http.StatusUnauthorized {
		logging.Debug("Pipeline", "Freshly refreshed token rejected for %s %s, not retrying",
			req.Method, req.URL.Redacted())
		return resp, nil
	}

	recovered, err := t.recover(ctx, resp.StatusCode, first.attached)
	if err != nil {
		logging.Warn("Pipeline", "Recovery for %s %s failed, returning original response: %v",
			req.Method, req.URL.Redacted(), err)
		return resp, nil
	}
	if !recovered {
		return resp, nil
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		logging.Warn("Pipeline", "Cannot replay %s %s: request body is not rewindable", req.Method, req.URL.Redacted())
		return resp, nil
	}
	drain(resp)

	logging.Debug("Pipeline", "Retrying %s %s (request %s)", req.Method, req.URL.Redacted(), requestID)
	retried, _, err := t.send(req, requestID, false)
	return retried, err
}

// recover runs the recovery step for a rejected first attempt. It reports
// whether the request should be replayed.
func (t *Transport) recover(ctx context.Context, status int, attached attachment) (bool, error) {
	switch {
	case status == http.StatusUnauthorized && attached == attachedOAuth:
		token, err := t.Auth.client.RefreshAccessToken(ctx)
		if err != nil {
			return false, err
		}
		t.minted(token.AccessToken)
		return true, nil
	case status == http.StatusForbidden && attached == attachedSession:
		csrf, err := t.Auth.client.RefreshCsrfToken(ctx)
		if err != nil {
			return false, err
		}
		t.Auth.csrfRefreshed(csrf)
		return true, nil
	default:
		return false, nil
	}
}

// attempt describes how one attempt was sent.
type attempt struct {
	attached  attachment
	refreshed bool
}

// send clones req, attaches credentials and performs one attempt. The
// access token is refreshed ahead of sending only when allowRefresh is set.
func (t *Transport) send(req *http.Request, requestID string, allowRefresh bool) (*http.Response, attempt, error) {
	out := req.Clone(req.Context())
	if rewindable(req) {
		body, err := req.GetBody()
		if err != nil {
			return nil, attempt{}, fmt.Errorf("failed to rewind request body: %w", err)
		}
		out.Body = body
	}
	out.Header.Set(RequestIDHeader, requestID)

	result, err := t.attach(out, allowRefresh)
	if err != nil {
		closeBody(out.Body)
		return nil, attempt{}, err
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		logging.Debug("Pipeline", "%s %s failed: %v", req.Method, req.URL.Redacted(), err)
		return nil, result, err
	}
	return resp, result, nil
}

// attach adds the bearer token, or the session cookie plus a CSRF header
// for state-changing methods. OAuth wins when both are valid.
func (t *Transport) attach(req *http.Request, allowRefresh bool) (attempt, error) {
	ctx := req.Context()
	client := t.Auth.client
	store := client.store

	oauthUsable, err := t.oauthUsable(ctx)
	if err != nil {
		return attempt{}, err
	}
	var refreshed bool
	if !oauthUsable && allowRefresh {
		refreshed = t.refreshAhead(ctx)
		oauthUsable = refreshed
	}
	if oauthUsable {
		token, err := client.Token(ctx)
		if err != nil {
			return attempt{}, err
		}
		if token != nil && token.AccessToken != "" {
			token.SetAuthHeader(req)
			return attempt{attached: attachedOAuth, refreshed: refreshed}, nil
		}
	}

	cookie, ok, err := store.Get(ctx, credentials.KeySession)
	if err != nil {
		return attempt{}, err
	}
	if !ok {
		return attempt{}, nil
	}
	if existing := req.Header.Get("Cookie"); existing != "" {
		cookie = existing + "; " + cookie
	}
	req.Header.Set("Cookie", cookie)

	if isMutating(req.Method) {
		csrf, ok, err := store.Get(ctx, credentials.KeyCSRFToken)
		if err != nil {
			return attempt{}, err
		}
		if ok {
			req.Header.Set(csrfHeader, csrf)
		}
	}
	return attempt{attached: attachedSession}, nil
}

// oauthUsable reports whether the stored access token may be sent as is.
// Besides tokens outside the expiry buffer, a token this transport minted
// itself is used until it actually expires, so a backend issuing tokens no
// longer than the buffer does not cause a refresh per request.
func (t *Transport) oauthUsable(ctx context.Context) (bool, error) {
	inspector := t.Auth.client.inspector
	valid, err := inspector.IsOAuthValid(ctx)
	if err != nil || valid {
		return valid, err
	}

	t.mu.Lock()
	minted := t.lastMinted
	t.mu.Unlock()
	if minted == "" {
		return false, nil
	}

	token, err := t.Auth.client.Token(ctx)
	if err != nil || token == nil || token.AccessToken != minted {
		return false, err
	}
	return t.Auth.client.clock.Now().Before(token.Expiry), nil
}

// refreshAhead refreshes an expired access token before sending when a
// refresh token is stored. Failure leaves the request to the session or
// anonymous path.
func (t *Transport) refreshAhead(ctx context.Context) bool {
	_, ok, err := t.Auth.client.store.Get(ctx, credentials.KeyRefreshToken)
	if err != nil || !ok {
		return false
	}
	token, err := t.Auth.client.RefreshAccessToken(ctx)
	if err != nil {
		logging.Warn("Pipeline", "Access token expired and refresh failed: %v", err)
		return false
	}
	t.minted(token.AccessToken)
	return true
}

func (t *Transport) minted(accessToken string) {
	t.mu.Lock()
	t.lastMinted = accessToken
	t.mu.Unlock()
	t.Auth.tokenRefreshed(accessToken)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func rewindable(req *http.Request) bool {
	return req.GetBody != nil && req.Body != nil && req.Body != http.NoBody
}

func closeBody(body io.ReadCloser) {
	if body != nil && body != http.NoBody {
		body.Close()
	}
}
