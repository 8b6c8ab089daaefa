package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateHTTPURL checks that value is an absolute http(s) URL.
func ValidateHTTPURL(value string) error {
	if value == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}

// Validate checks the configuration for values the client cannot work with.
func (c Config) Validate() error {
	var errs ValidationErrors

	if err := ValidateHTTPURL(c.Drupal.BaseURL); err != nil {
		errs.Add("drupal.baseURL", err.Error(), c.Drupal.BaseURL)
	}
	if c.Drupal.APIURL != "" {
		if err := ValidateHTTPURL(c.Drupal.APIURL); err != nil {
			errs.Add("drupal.apiURL", err.Error(), c.Drupal.APIURL)
		}
	}
	if c.OAuth.RedirectURI != "" {
		if err := ValidateHTTPURL(c.OAuth.RedirectURI); err != nil {
			errs.Add("oauth.redirectURI", err.Error(), c.OAuth.RedirectURI)
		}
	}
	if c.OAuth.CallbackPort < 0 || c.OAuth.CallbackPort > 65535 {
		errs.Add("oauth.callbackPort", "must be between 0 and 65535", c.OAuth.CallbackPort)
	}
	if c.OAuth.ExpiryBufferSeconds < 0 {
		errs.Add("oauth.expiryBufferSeconds", "must not be negative", c.OAuth.ExpiryBufferSeconds)
	}

	switch c.Credentials.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.Credentials.Redis.Addr == "" {
			errs.Add("credentials.redis.addr", "is required for the redis backend")
		}
	default:
		errs.Add("credentials.backend", "must be one of file, memory, redis", c.Credentials.Backend)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
