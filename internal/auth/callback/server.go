// Package callback receives the OAuth authorization redirect on a loopback
// listener so the CLI can finish a login without a browser-side app.
package callback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"recipebox/pkg/logging"
)

// DefaultPath is the redirect path registered for the CLI client.
const DefaultPath = "/auth/callback"

// Timeout is how long a login may wait for the redirect.
const Timeout = 10 * time.Minute

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Signed in</title>
<style>body{font-family:sans-serif;margin:4em auto;max-width:32em;text-align:center}</style></head>
<body><h1>You are signed in</h1><p>You can close this window and return to the terminal.</p></body></html>`))

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Sign-in failed</title>
<style>body{font-family:sans-serif;margin:4em auto;max-width:32em;text-align:center}</style></head>
<body><h1>Sign-in failed</h1><p><code>{{.Error}}</code></p>{{if .Description}}<p>{{.Description}}</p>{{end}}
<p>Return to the terminal and run the login again.</p></body></html>`))

// Result is what the authorization server sent back.
type Result struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// IsError returns true if the provider reported a failure.
func (r *Result) IsError() bool {
	return r.Error != ""
}

// Err converts a provider failure into an error.
func (r *Result) Err() error {
	if !r.IsError() {
		return nil
	}
	if r.ErrorDescription != "" {
		return fmt.Errorf("authorization failed: %s: %s", r.Error, r.ErrorDescription)
	}
	return fmt.Errorf("authorization failed: %s", r.Error)
}

// Server is a single-use loopback HTTP server for the OAuth redirect.
type Server struct {
	port     int
	path     string
	server   *http.Server
	listener net.Listener
	resultCh chan *Result
	errorCh  chan error
	once     sync.Once
}

// NewServer creates a server for the given port and path. Port 0 picks a
// free port; an empty path uses DefaultPath.
func NewServer(port int, path string) *Server {
	if path == "" {
		path = DefaultPath
	}
	return &Server{
		port:     port,
		path:     path,
		resultCh: make(chan *Result, 1),
		errorCh:  make(chan error, 1),
	}
}

// NewServerForRedirect derives port and path from a loopback redirect URI.
func NewServerForRedirect(redirectURI string) (*Server, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	port := 80
	if p := u.Port(); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
			return nil, fmt.Errorf("invalid redirect port %q", p)
		}
	}
	return NewServer(port, u.Path), nil
}

// Start begins listening and returns the redirect URI. The server stops
// when ctx is cancelled.
func (s *Server) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug("CallbackServer", "Listening for OAuth redirect on %s", s.RedirectURI())
	return s.RedirectURI(), nil
}

// Wait blocks until the redirect arrives, the server fails or ctx ends.
func (s *Server) Wait(ctx context.Context) (*Result, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *Server) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &Result{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var err error
	if result.IsError() {
		w.WriteHeader(http.StatusBadRequest)
		err = errorPage.Execute(w, map[string]string{
			"Error":       result.Error,
			"Description": result.ErrorDescription,
		})
	} else {
		err = successPage.Execute(w, nil)
	}
	if err != nil {
		logging.Warn("CallbackServer", "Failed to render callback page: %v", err)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// Give the browser time to receive the page before shutting down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// RedirectURI returns the URI the authorization server must redirect to.
func (s *Server) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}

// Port returns the bound port.
func (s *Server) Port() int {
	return s.port
}
