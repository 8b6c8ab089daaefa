package cli

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"recipebox/internal/auth"
)

// ConnectionErrorType categorizes why the backend could not be reached.
type ConnectionErrorType int

const (
	ConnectionErrorUnknown ConnectionErrorType = iota
	ConnectionErrorTLS
	ConnectionErrorNetwork
	ConnectionErrorTimeout
	ConnectionErrorDNS
)

func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "TLS certificate error"
	case ConnectionErrorNetwork:
		return "Network error"
	case ConnectionErrorTimeout:
		return "Connection timeout"
	case ConnectionErrorDNS:
		return "DNS resolution error"
	default:
		return "Connection error"
	}
}

// ConnectionError reports that the Drupal backend could not be reached.
type ConnectionError struct {
	BaseURL string
	Type    ConnectionErrorType
	Reason  error
}

func (e *ConnectionError) Error() string {
	hint := "Check that the backend is running and drupal.baseURL is correct."
	switch e.Type {
	case ConnectionErrorTLS:
		hint = "The backend certificate is not trusted by this machine."
	case ConnectionErrorDNS:
		hint = "The backend host name could not be resolved."
	case ConnectionErrorTimeout:
		hint = "The backend did not answer in time; raise http.timeout if it is slow."
	}
	return fmt.Sprintf("%s reaching %s: %v\n\n%s", e.Type, e.BaseURL, e.Reason, hint)
}

func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

// ClassifyConnectionError returns nil when err is not a transport failure.
func ClassifyConnectionError(err error, baseURL string) *ConnectionError {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	var opErr *net.OpError
	if !errors.As(err, &urlErr) && !errors.As(err, &opErr) && !isNetworkError(err.Error()) {
		return nil
	}

	connErr := &ConnectionError{BaseURL: baseURL, Type: ConnectionErrorUnknown, Reason: err}
	var dnsErr *net.DNSError
	switch {
	case isTLSError(err):
		connErr.Type = ConnectionErrorTLS
	case errors.As(err, &dnsErr):
		connErr.Type = ConnectionErrorDNS
	case isTimeoutError(err):
		connErr.Type = ConnectionErrorTimeout
	case isNetworkError(err.Error()):
		connErr.Type = ConnectionErrorNetwork
	}
	return connErr
}

func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return true
	}

	errStr := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(errStr string) bool {
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
	} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// AuthRequiredError means the command needs credentials and none are stored.
type AuthRequiredError struct {
	BaseURL string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf(`Not logged in to %s

To authenticate, run:
  recipebox auth login

To log in with a username and password instead:
  recipebox auth login --session --username <name>`, e.BaseURL)
}

func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthExpiredError means stored credentials were rejected or have expired.
type AuthExpiredError struct {
	BaseURL string
	Reason  error
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf(`Authentication for %s is no longer valid: %v

To re-authenticate, run:
  recipebox auth login

Or try to refresh your token:
  recipebox auth refresh`, e.BaseURL, e.Reason)
}

func (e *AuthExpiredError) Unwrap() error {
	return e.Reason
}

func (e *AuthExpiredError) Is(target error) bool {
	_, ok := target.(*AuthExpiredError)
	return ok
}

// AuthFailedError means a login attempt did not succeed.
type AuthFailedError struct {
	BaseURL string
	Reason  error
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed for %s: %v

To retry authentication, run:
  recipebox auth login`, e.BaseURL, e.Reason)
}

func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// ClassifyAuthError maps errors from the auth package onto the CLI error
// types. Errors it does not recognise are returned unchanged.
func ClassifyAuthError(err error, baseURL string) error {
	if err == nil {
		return nil
	}

	var (
		required *AuthRequiredError
		expired  *AuthExpiredError
		failed   *AuthFailedError
	)
	if errors.As(err, &required) || errors.As(err, &expired) || errors.As(err, &failed) {
		return err
	}

	if connErr := ClassifyConnectionError(err, baseURL); connErr != nil {
		return connErr
	}

	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return &AuthRequiredError{BaseURL: baseURL}
	case errors.Is(err, auth.ErrNoRefreshToken),
		errors.Is(err, auth.ErrCsrfRefresh),
		errors.Is(err, auth.ErrUserInfoFetch):
		return &AuthExpiredError{BaseURL: baseURL, Reason: err}
	case errors.Is(err, auth.ErrSessionLogin),
		errors.Is(err, auth.ErrStateMismatch),
		errors.Is(err, auth.ErrTokenExchange):
		return &AuthFailedError{BaseURL: baseURL, Reason: err}
	}
	return err
}
