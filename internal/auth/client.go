package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recipebox/internal/credentials"

	"golang.org/x/sync/singleflight"
)

// Backend endpoints, relative to the base URL.
const (
	authorizeEndpoint = "/oauth/authorize"
	tokenEndpoint     = "/oauth/token"
	userInfoEndpoint  = "/oauth/userinfo"
	loginEndpoint     = "/user/login?_format=json"
	sessionTokenPath  = "/session/token"
	userMeEndpoint    = "/user/me?_format=json"
	logoutEndpoint    = "/user/logout"
)

const (
	// DefaultExpiryBuffer is subtracted from the access-token expiry so a
	// token never expires mid-request.
	DefaultExpiryBuffer = 300 * time.Second

	// DefaultRefreshTokenTTL is the refresh-token lifetime assumed when the
	// backend does not report one.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// DefaultAccessTokenLifetime applies when a token response omits expires_in.
	DefaultAccessTokenLifetime = 3600 * time.Second

	// StateTTL bounds how long a login may stay in progress.
	StateTTL = 10 * time.Minute

	// DefaultScope is requested when no scope is given.
	DefaultScope = "oauth_scope"

	csrfHeader = "X-CSRF-Token"
)

// Config configures a Client.
type Config struct {
	BaseURL         string
	ClientID        string
	ClientSecret    string
	Scope           string
	ExpiryBuffer    time.Duration
	RefreshTokenTTL time.Duration
}

// Client talks to the Drupal auth endpoints and persists the resulting
// credentials. It does not keep any in-memory auth state of its own.
type Client struct {
	cfg        Config
	store      credentials.Store
	httpClient *http.Client
	clock      Clock
	inspector  *Inspector
	secure     bool

	// refreshGroup collapses concurrent refresh calls into one request,
	// since refresh tokens may be single-use.
	refreshGroup singleflight.Group
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for auth endpoint calls. It must
// not be a client built on Transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClock sets the clock used for expiry calculations.
func WithClock(clock Clock) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

// NewClient creates a client for the backend at cfg.BaseURL.
func NewClient(store credentials.Store, cfg Config, opts ...ClientOption) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.ExpiryBuffer == 0 {
		cfg.ExpiryBuffer = DefaultExpiryBuffer
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}

	c := &Client{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.inspector = NewInspector(store, c.clock, cfg.ExpiryBuffer)
	if u, err := url.Parse(cfg.BaseURL); err == nil {
		c.secure = u.Scheme == "https"
	}
	return c
}

// Inspector returns the state inspector bound to the client's store.
func (c *Client) Inspector() *Inspector {
	return c.inspector
}

// Store returns the credential store.
func (c *Client) Store() credentials.Store {
	return c.store
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

func (c *Client) options() credentials.SetOptions {
	return credentials.DefaultOptions(c.secure)
}

func (c *Client) endpoint(path string) string {
	return c.cfg.BaseURL + path
}

// sessionCookie returns the stored "name=value" session cookie.
func (c *Client) sessionCookie(ctx context.Context) (string, bool, error) {
	return c.store.Get(ctx, credentials.KeySession)
}

// newCredentialedRequest builds a request carrying the stored session cookie.
func (c *Client) newCredentialedRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	cookie, ok, err := c.sessionCookie(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		req.Header.Set("Cookie", cookie)
	}
	return req, nil
}

// drain discards the rest of a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
