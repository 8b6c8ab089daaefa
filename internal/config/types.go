package config

import "time"

// Credential store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the top-level configuration structure for recipebox.
type Config struct {
	Drupal      DrupalConfig      `yaml:"drupal"`
	OAuth       OAuthConfig       `yaml:"oauth"`
	Session     SessionConfig     `yaml:"session,omitempty"`
	Credentials CredentialsConfig `yaml:"credentials"`
	HTTP        HTTPConfig        `yaml:"http,omitempty"`
}

// DrupalConfig locates the backend.
type DrupalConfig struct {
	BaseURL string `yaml:"baseURL"`          // e.g. https://recipes.ddev.site
	APIURL  string `yaml:"apiURL,omitempty"` // JSON:API root (default: <baseURL>/jsonapi)
}

// OAuthConfig holds the OAuth client registration.
type OAuthConfig struct {
	ClientID            string        `yaml:"clientID"`
	ClientSecret        string        `yaml:"clientSecret,omitempty"`
	Scope               string        `yaml:"scope,omitempty"`
	CallbackPort        int           `yaml:"callbackPort,omitempty"`
	RedirectURI         string        `yaml:"redirectURI,omitempty"`
	ExpiryBufferSeconds int           `yaml:"expiryBufferSeconds,omitempty"`
	RefreshTokenTTL     time.Duration `yaml:"refreshTokenTTL,omitempty"`
}

// SessionConfig tunes session-mode behaviour.
type SessionConfig struct {
	// VerifyOnStart pings /user/me before commands that need authentication
	// so a server-invalidated session is noticed before the first write.
	VerifyOnStart bool `yaml:"verifyOnStart,omitempty"`
}

// CredentialsConfig selects and configures the credential store backend.
type CredentialsConfig struct {
	Backend string      `yaml:"backend"`
	Dir     string      `yaml:"dir,omitempty"` // file backend (default: config directory)
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the redis credential backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ExpiryBuffer returns the access-token expiry buffer as a duration.
func (c OAuthConfig) ExpiryBuffer() time.Duration {
	return time.Duration(c.ExpiryBufferSeconds) * time.Second
}

// ResolvedAPIURL returns the JSON:API root, deriving it from the base URL
// when not set explicitly.
func (c DrupalConfig) ResolvedAPIURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return c.BaseURL + "/jsonapi"
}
