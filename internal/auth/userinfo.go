package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"recipebox/internal/credentials"
)

// User is a profile fetched from either /oauth/userinfo or /user/me.
type User struct {
	ID    string
	Name  string
	Email string

	// Raw is the profile exactly as the backend returned it.
	Raw map[string]any
}

// FetchOAuthUser loads the profile for the stored bearer token.
func (c *Client) FetchOAuthUser(ctx context.Context) (*User, error) {
	accessToken, ok, err := c.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(userInfoEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return c.fetchUser(req)
}

// FetchSessionUser loads the profile for the stored session cookie.
func (c *Client) FetchSessionUser(ctx context.Context) (*User, error) {
	req, err := c.newCredentialedRequest(ctx, http.MethodGet, userMeEndpoint, nil)
	if err != nil {
		return nil, err
	}
	if req.Header.Get("Cookie") == "" {
		return nil, ErrNotAuthenticated
	}
	return c.fetchUser(req)
}

// FetchUserInfo uses the bearer token while it is valid and the session
// otherwise.
func (c *Client) FetchUserInfo(ctx context.Context) (*User, error) {
	oauthValid, err := c.inspector.IsOAuthValid(ctx)
	if err != nil {
		return nil, err
	}
	if oauthValid {
		return c.FetchOAuthUser(ctx)
	}
	return c.FetchSessionUser(ctx)
}

func (c *Client) fetchUser(req *http.Request) (*User, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	if err := CheckResponse(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return userFromProfile(raw), nil
}

// userFromProfile understands both the OpenID userinfo shape
// ({"sub": "1", "name": ...}) and Drupal's entity shape
// ({"uid": [{"value": 1}], "name": [{"value": ...}]}).
func userFromProfile(raw map[string]any) *User {
	user := &User{Raw: raw}
	user.ID = firstString(raw, "sub", "uid", "id")
	user.Name = firstString(raw, "preferred_username", "name")
	user.Email = firstString(raw, "email", "mail")
	return user
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := fieldString(raw[key]); s != "" {
			return s
		}
	}
	return ""
}

func fieldString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	case []any:
		if len(val) == 0 {
			return ""
		}
		return fieldString(val[0])
	case map[string]any:
		return fieldString(val["value"])
	default:
		return ""
	}
}
