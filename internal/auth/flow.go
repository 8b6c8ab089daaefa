package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"recipebox/internal/credentials"
	"recipebox/pkg/logging"
)

// stateFragmentLen is the width of one base-36 state fragment. 36^25
// exceeds 2^128, so a 128-bit value always fits.
const stateFragmentLen = 25

type flowOptions struct {
	scope string
	state string
}

// FlowOption customises InitiateAuthFlow.
type FlowOption func(*flowOptions)

// WithScope overrides the configured scope.
func WithScope(scope string) FlowOption {
	return func(o *flowOptions) { o.scope = scope }
}

// WithState supplies the state nonce instead of generating one.
func WithState(state string) FlowOption {
	return func(o *flowOptions) { o.state = state }
}

// InitiateAuthFlow persists a state nonce and returns the authorization URL
// the user must visit. Navigation is left to the caller.
func (c *Client) InitiateAuthFlow(ctx context.Context, redirectURI string, opts ...FlowOption) (string, error) {
	o := flowOptions{scope: c.cfg.Scope}
	for _, opt := range opts {
		opt(&o)
	}
	if o.state == "" {
		state, err := GenerateState()
		if err != nil {
			return "", err
		}
		o.state = state
	}

	stateOpts := c.options().WithExpiry(c.clock.Now().Add(StateTTL))
	if err := c.store.Set(ctx, credentials.KeyState, o.state, stateOpts); err != nil {
		return "", fmt.Errorf("failed to persist authorization state: %w", err)
	}

	authURL, err := url.Parse(c.endpoint(authorizeEndpoint))
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	query := authURL.Query()
	query.Set("client_id", c.cfg.ClientID)
	query.Set("response_type", "code")
	query.Set("redirect_url", redirectURI)
	query.Set("scope", o.scope)
	query.Set("state", o.state)
	authURL.RawQuery = query.Encode()

	logging.Debug("AuthFlow", "Initiated authorization flow (redirect=%s, scope=%s)", redirectURI, o.scope)
	return authURL.String(), nil
}

// GenerateState returns two independent random base-36 fragments.
func GenerateState() (string, error) {
	first, err := randomFragment()
	if err != nil {
		return "", err
	}
	second, err := randomFragment()
	if err != nil {
		return "", err
	}
	return first + second, nil
}

func randomFragment() (string, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	s := n.Text(36)
	if len(s) < stateFragmentLen {
		s = strings.Repeat("0", stateFragmentLen-len(s)) + s
	}
	return s, nil
}
