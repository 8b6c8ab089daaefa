package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"recipebox/internal/credentials"

	"golang.org/x/oauth2"
)

// Inspector answers whether stored credentials are usable, from the store
// contents alone. It never touches the network.
type Inspector struct {
	store  credentials.Store
	clock  Clock
	buffer time.Duration
}

// NewInspector creates an inspector. A nil clock uses the system time.
func NewInspector(store credentials.Store, clock Clock, buffer time.Duration) *Inspector {
	if clock == nil {
		clock = systemClock{}
	}
	return &Inspector{store: store, clock: clock, buffer: buffer}
}

// IsOAuthValid is true iff an access token is stored and
// now < expires_at - buffer. A missing or unreadable expiry is invalid.
func (i *Inspector) IsOAuthValid(ctx context.Context) (bool, error) {
	_, ok, err := i.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil || !ok {
		return false, err
	}

	expiresAt, ok, err := i.ExpiresAt(ctx)
	if err != nil || !ok {
		return false, err
	}
	return i.clock.Now().Before(expiresAt.Add(-i.buffer)), nil
}

// TokenValid applies the IsOAuthValid rule to a token already read from
// the store.
func (i *Inspector) TokenValid(token *oauth2.Token) bool {
	if token == nil || token.AccessToken == "" || token.Expiry.IsZero() {
		return false
	}
	return i.clock.Now().Before(token.Expiry.Add(-i.buffer))
}

// IsSessionValid is true iff a session cookie is stored. The server may
// have invalidated the session already; see Authenticator.Ping.
func (i *Inspector) IsSessionValid(ctx context.Context) (bool, error) {
	_, ok, err := i.store.Get(ctx, credentials.KeySession)
	return ok, err
}

// IsAuthenticated is the shallow combination of both checks.
func (i *Inspector) IsAuthenticated(ctx context.Context) (bool, error) {
	oauthValid, err := i.IsOAuthValid(ctx)
	if err != nil || oauthValid {
		return oauthValid, err
	}
	return i.IsSessionValid(ctx)
}

// ExpiresAt returns the stored access-token expiry.
func (i *Inspector) ExpiresAt(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := i.store.Get(ctx, credentials.KeyExpiresAt)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(millis), true, nil
}
