package config

import "time"

const (
	// DefaultCallbackPort is the loopback port the OAuth callback listener binds.
	DefaultCallbackPort = 3000

	// DefaultRedirectURI is the redirect URI registered for the CLI client.
	DefaultRedirectURI = "http://localhost:3000/auth/callback"

	// DefaultScope is requested when no scope is configured.
	DefaultScope = "oauth_scope"

	// DefaultExpiryBufferSeconds guards against a token expiring mid-request.
	DefaultExpiryBufferSeconds = 300

	// DefaultRefreshTokenTTL is used for the refresh token entry because the
	// token endpoint does not report refresh token lifetimes.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// DefaultHTTPTimeout bounds every backend call.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultRedisPrefix namespaces credential keys in a shared redis.
	DefaultRedisPrefix = "recipebox"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Drupal: DrupalConfig{
			BaseURL: "https://recipes.ddev.site",
		},
		OAuth: OAuthConfig{
			Scope:               DefaultScope,
			CallbackPort:        DefaultCallbackPort,
			RedirectURI:         DefaultRedirectURI,
			ExpiryBufferSeconds: DefaultExpiryBufferSeconds,
			RefreshTokenTTL:     DefaultRefreshTokenTTL,
		},
		Credentials: CredentialsConfig{
			Backend: BackendFile,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: DefaultRedisPrefix,
			},
		},
		HTTP: HTTPConfig{
			Timeout: DefaultHTTPTimeout,
		},
	}
}
