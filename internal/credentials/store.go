package credentials

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"recipebox/internal/config"
)

// Persisted key names.
const (
	KeyState        = "drupal_auth_state"
	KeyAccessToken  = "drupal_auth_access_token"
	KeyRefreshToken = "drupal_auth_refresh_token"
	KeyExpiresAt    = "drupal_auth_expires_at"
	KeySession      = "drupal_session"
	KeyCSRFToken    = "drupal_csrf_token"
	KeyLogoutToken  = "drupal_logout_token"

	// OAuthPrefix is shared by every key that belongs to the OAuth flow.
	OAuthPrefix = "drupal_auth_"
)

// SessionKeys lists the keys written by a session login.
var SessionKeys = []string{KeySession, KeyCSRFToken, KeyLogoutToken}

// SetOptions carries the attributes of a single write.
type SetOptions struct {
	// Expires is the instant after which the entry disappears.
	// The zero value keeps the entry until it is removed.
	Expires  time.Time
	SameSite http.SameSite
	Secure   bool
}

// DefaultOptions returns SameSite=Strict options with the Secure flag set
// when the backend is reached over TLS.
func DefaultOptions(secure bool) SetOptions {
	return SetOptions{SameSite: http.SameSiteStrictMode, Secure: secure}
}

// WithExpiry returns a copy of o expiring at t.
func (o SetOptions) WithExpiry(t time.Time) SetOptions {
	o.Expires = t
	return o
}

// Store is the credential persistence capability.
type Store interface {
	// Set writes value under key, replacing any previous entry.
	Set(ctx context.Context, key, value string, opts SetOptions) error

	// Get returns the value for key. The boolean is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys lists every live key.
	Keys(ctx context.Context) ([]string, error)

	// RemoveMatching deletes every key starting with prefix and reports how
	// many were removed.
	RemoveMatching(ctx context.Context, prefix string) (int, error)

	io.Closer
}

// Open creates the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.CredentialsConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile, "":
		return NewFileStore(FileStoreConfig{Dir: cfg.Dir})
	case config.BackendRedis:
		return NewRedisStore(ctx, RedisStoreConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.Backend)
	}
}

// expired reports whether an entry with the given expiry is dead at now.
func expired(expires, now time.Time) bool {
	return !expires.IsZero() && !now.Before(expires)
}
