package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_Redacted(t *testing.T) {
	secret := NewSecret("hunter2")

	assert.Equal(t, "hunter2", secret.Value())
	assert.False(t, secret.IsEmpty())
	assert.NotContains(t, secret.String(), "hunter2")
	assert.NotContains(t, fmt.Sprintf("%v %+v %#v %s", secret, secret, secret, secret), "hunter2")

	method := SessionMethod{CSRF: secret}
	assert.NotContains(t, fmt.Sprintf("%+v", method), "hunter2")

	data, err := json.Marshal(struct{ Token Secret }{secret})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	assert.True(t, NewSecret("").IsEmpty())
}

func TestMethodKinds(t *testing.T) {
	assert.Equal(t, MethodNone, NoMethod{}.Kind())
	assert.Equal(t, MethodOAuth, OAuthMethod{}.Kind())
	assert.Equal(t, MethodSession, SessionMethod{}.Kind())

	assert.Equal(t, "none", MethodNone.String())
	assert.Equal(t, "oauth", MethodOAuth.String())
	assert.Equal(t, "session", MethodSession.String())
}

func TestErrorSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&TokenExchangeError{GrantType: "refresh_token"}, ErrTokenExchange},
		{&NoRefreshTokenError{}, ErrNoRefreshToken},
		{&SessionLoginError{Username: "alice"}, ErrSessionLogin},
		{&CsrfRefreshError{}, ErrCsrfRefresh},
		{&StateMismatchError{}, ErrStateMismatch},
		{&UserInfoFetchError{Method: MethodOAuth}, ErrUserInfoFetch},
	}
	for _, tt := range tests {
		t.Run(tt.sentinel.Error(), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tt.err), tt.sentinel)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
	assert.False(t, errors.Is(&CsrfRefreshError{}, ErrSessionLogin))
}

func TestCheckResponse(t *testing.T) {
	ok := &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}
	assert.NoError(t, CheckResponse(ok))

	failed := &http.Response{
		StatusCode: http.StatusForbidden,
		Body:       io.NopCloser(strings.NewReader(`{"message":"Access denied"}`)),
		Request:    &http.Request{Method: http.MethodGet},
	}
	err := CheckResponse(failed)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.Equal(t, http.StatusForbidden, StatusCode(fmt.Errorf("wrapped: %w", err)))
	assert.Zero(t, StatusCode(errors.New("plain")))
}

func TestUserFromProfile(t *testing.T) {
	var oidc, entity map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"sub":"7","preferred_username":"bob","email":"bob@example.com"}`), &oidc))
	require.NoError(t, json.Unmarshal([]byte(`{"uid":[{"value":7}],"name":[{"value":"bob"}],"mail":[{"value":"bob@example.com"}]}`), &entity))

	for _, raw := range []map[string]any{oidc, entity} {
		user := userFromProfile(raw)
		assert.Equal(t, "7", user.ID)
		assert.Equal(t, "bob", user.Name)
		assert.Equal(t, "bob@example.com", user.Email)
	}
}
