package mock

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SessionCookieName is the session cookie the mock backend issues.
const SessionCookieName = "SESSd41d8cd98f00b204"

// DrupalUser is an account known to the mock backend.
type DrupalUser struct {
	UID      int
	Name     string
	Password string
	Email    string
}

// DrupalServerConfig configures the mock Drupal backend behavior
type DrupalServerConfig struct {
	// ClientID is the expected OAuth client ID
	ClientID string

	// ClientSecret is the expected OAuth client secret (optional)
	ClientSecret string

	// Users lists the accounts accepted by session login. The first user is
	// the one the authorize endpoint approves.
	Users []DrupalUser

	// TokenLifetime is reported as expires_in
	TokenLifetime time.Duration

	// OmitExpiresIn drops expires_in from token responses
	OmitExpiresIn bool

	// Recipes seeds the JSON:API recipe collection
	Recipes []RecipeFixture

	// ReportCount adds meta.count to collection responses
	ReportCount bool

	// RequireAuth rejects anonymous JSON:API reads
	RequireAuth bool

	// UseTLS serves over https with a self-signed certificate
	UseTLS bool

	// Clock is the clock to use for token expiry (defaults to RealClock)
	Clock Clock
}

// DrupalServer is an httptest-backed fake of the Drupal endpoints used by
// recipebox: OAuth, session login, user profiles and the recipe JSON:API.
type DrupalServer struct {
	*httptest.Server

	config DrupalServerConfig
	clock  Clock

	mu            sync.Mutex
	codes         map[string]*DrupalUser
	accessTokens  map[string]*issuedAccessToken
	refreshTokens map[string]*DrupalUser
	sessions      map[string]*drupalSession
	calls         map[string]int
	failures      map[string][]int
	lastHeaders   map[string]http.Header
	created       []json.RawMessage
}

type issuedAccessToken struct {
	user      *DrupalUser
	expiresAt time.Time
}

type drupalSession struct {
	user        *DrupalUser
	csrfToken   string
	logoutToken string
}

// NewDrupalServer creates and starts a mock backend. Call Close when done.
func NewDrupalServer(config DrupalServerConfig) *DrupalServer {
	if config.ClientID == "" {
		config.ClientID = "test-client"
	}
	if len(config.Users) == 0 {
		config.Users = []DrupalUser{{UID: 1, Name: "alice", Password: "pw", Email: "alice@example.com"}}
	}
	if config.TokenLifetime == 0 {
		config.TokenLifetime = time.Hour
	}
	if config.Recipes == nil {
		config.Recipes = DefaultRecipes()
	}
	clock := config.Clock
	if clock == nil {
		clock = RealClock{}
	}

	s := &DrupalServer{
		config:        config,
		clock:         clock,
		codes:         make(map[string]*DrupalUser),
		accessTokens:  make(map[string]*issuedAccessToken),
		refreshTokens: make(map[string]*DrupalUser),
		sessions:      make(map[string]*drupalSession),
		calls:         make(map[string]int),
		failures:      make(map[string][]int),
		lastHeaders:   make(map[string]http.Header),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth/authorize", s.handleAuthorize)
	mux.HandleFunc("POST /oauth/token", s.handleToken)
	mux.HandleFunc("GET /oauth/userinfo", s.handleUserInfo)
	mux.HandleFunc("POST /user/login", s.handleLogin)
	mux.HandleFunc("GET /session/token", s.handleSessionToken)
	mux.HandleFunc("GET /user/me", s.handleUserMe)
	mux.HandleFunc("GET /user/logout", s.handleLogout)
	mux.HandleFunc("GET /jsonapi/node/recipe", s.handleRecipeCollection)
	mux.HandleFunc("POST /jsonapi/node/recipe", s.handleRecipeCreate)
	mux.HandleFunc("GET /jsonapi/node/recipe/{id}", s.handleRecipe)

	handler := s.instrument(mux)
	if config.UseTLS {
		s.Server = httptest.NewTLSServer(handler)
	} else {
		s.Server = httptest.NewServer(handler)
	}
	return s
}

// instrument counts calls, records headers and serves injected failures.
func (s *DrupalServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		s.mu.Lock()
		s.calls[path]++
		s.lastHeaders[path] = r.Header.Clone()
		var injected int
		if queue := s.failures[path]; len(queue) > 0 {
			injected = queue[0]
			s.failures[path] = queue[1:]
		}
		s.mu.Unlock()

		if injected != 0 {
			writeJSON(w, injected, map[string]string{"message": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Calls returns how many requests hit path.
func (s *DrupalServer) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// LastHeaders returns the headers of the most recent request to path.
func (s *DrupalServer) LastHeaders(path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeaders[path]
}

// FailNext makes the next n requests to path answer with status.
func (s *DrupalServer) FailNext(path string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures[path] = append(s.failures[path], status)
	}
}

// IssueCode creates an authorization code for the first configured user.
func (s *DrupalServer) IssueCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := randomToken("code")
	s.codes[code] = &s.config.Users[0]
	return code
}

// IssueRefreshToken registers a refresh token for the first configured user.
func (s *DrupalServer) IssueRefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := randomToken("refresh")
	s.refreshTokens[token] = &s.config.Users[0]
	return token
}

// RevokeAccessTokens invalidates every issued access token.
func (s *DrupalServer) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = make(map[string]*issuedAccessToken)
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (s *DrupalServer) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]*DrupalUser)
}

// RevokeSessions destroys every server-side session.
func (s *DrupalServer) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*drupalSession)
}

// RotateCSRF replaces the CSRF token of every session, so tokens held by
// clients become stale.
func (s *DrupalServer) RotateCSRF() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		session.csrfToken = randomToken("csrf")
	}
}

// SessionCount returns the number of live server-side sessions.
func (s *DrupalServer) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Created returns the bodies of recipes created through the JSON:API.
func (s *DrupalServer) Created() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.created...)
}

func (s *DrupalServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("client_id") != s.config.ClientID {
		http.Error(w, "unknown client", http.StatusBadRequest)
		return
	}
	redirectURL, err := url.Parse(query.Get("redirect_url"))
	if err != nil || redirectURL.Scheme == "" {
		http.Error(w, "invalid redirect_url", http.StatusBadRequest)
		return
	}

	code := s.IssueCode()
	params := redirectURL.Query()
	params.Set("code", code)
	params.Set("state", query.Get("state"))
	redirectURL.RawQuery = params.Encode()
	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

func (s *DrupalServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	if r.PostForm.Get("client_id") != s.config.ClientID ||
		(s.config.ClientSecret != "" && r.PostForm.Get("client_secret") != s.config.ClientSecret) {
		oauthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var user *DrupalUser
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")
		user = s.codes[code]
		delete(s.codes, code)
	case "refresh_token":
		refresh := r.PostForm.Get("refresh_token")
		user = s.refreshTokens[refresh]
		delete(s.refreshTokens, refresh)
	default:
		oauthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}
	if user == nil {
		oauthError(w, http.StatusBadRequest, "invalid_grant", "The provided authorization grant is invalid.")
		return
	}

	access := randomToken("access")
	refresh := randomToken("refresh")
	s.accessTokens[access] = &issuedAccessToken{user: user, expiresAt: s.clock.Now().Add(s.config.TokenLifetime)}
	s.refreshTokens[refresh] = user

	body := map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
	}
	if !s.config.OmitExpiresIn {
		body["expires_in"] = int(s.config.TokenLifetime.Seconds())
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *DrupalServer) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	user, status := s.bearerUser(r)
	if user == nil {
		writeJSON(w, status, map[string]string{"message": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sub":                strconv.Itoa(user.UID),
		"name":               user.Name,
		"preferred_username": user.Name,
		"email":              user.Email,
	})
}

func (s *DrupalServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Name string `json:"name"`
		Pass string `json:"pass"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing credentials."})
		return
	}

	var user *DrupalUser
	for i := range s.config.Users {
		if s.config.Users[i].Name == creds.Name && s.config.Users[i].Password == creds.Pass {
			user = &s.config.Users[i]
		}
	}
	if user == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Sorry, unrecognized username or password."})
		return
	}

	sessionID := randomToken("sid")
	session := &drupalSession{user: user, csrfToken: randomToken("csrf"), logoutToken: randomToken("logout")}

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Expires:  s.clock.Now().Add(24 * time.Hour),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_user": map[string]interface{}{
			"uid":   strconv.Itoa(user.UID),
			"name":  user.Name,
			"roles": []string{"authenticated"},
		},
		"csrf_token":   session.csrfToken,
		"logout_token": session.logoutToken,
	})
}

func (s *DrupalServer) handleSessionToken(w http.ResponseWriter, r *http.Request) {
	token := randomToken("anon")
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		s.mu.Lock()
		if session, ok := s.sessions[cookie.Value]; ok {
			session.csrfToken = randomToken("csrf")
			token = session.csrfToken
		}
		s.mu.Unlock()
	}

	// Drupal hands anonymous visitors a token as well.
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(token))
}

func (s *DrupalServer) handleUserMe(w http.ResponseWriter, r *http.Request) {
	_, session := s.sessionFor(r)
	if session == nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Access denied"})
		return
	}
	user := session.user
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uid":  []map[string]interface{}{{"value": user.UID}},
		"name": []map[string]interface{}{{"value": user.Name}},
		"mail": []map[string]interface{}{{"value": user.Email}},
	})
}

func (s *DrupalServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		s.mu.Lock()
		delete(s.accessTokens, token)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sessionID, session := s.sessionFor(r)
	if session == nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Access denied"})
		return
	}
	if r.URL.Query().Get("token") != session.logoutToken || r.Header.Get("X-CSRF-Token") != session.logoutToken {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "'csrf_token' URL query argument is invalid."})
		return
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// authorize resolves the caller of a JSON:API request. An invalid bearer is
// always rejected; anonymous access depends on RequireAuth.
func (s *DrupalServer) authorize(w http.ResponseWriter, r *http.Request) (*drupalSession, bool) {
	if bearerToken(r) != "" {
		if user, status := s.bearerUser(r); user == nil {
			writeJSON(w, status, jsonAPIError(status, "invalid token"))
			return nil, false
		}
		return nil, true
	}
	_, session := s.sessionFor(r)
	if session == nil && s.config.RequireAuth {
		writeJSON(w, http.StatusUnauthorized, jsonAPIError(http.StatusUnauthorized, "authentication required"))
		return nil, false
	}
	return session, true
}

func (s *DrupalServer) bearerUser(r *http.Request) (*DrupalUser, int) {
	token := bearerToken(r)
	if token == "" {
		return nil, http.StatusUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.accessTokens[token]
	if !ok || !s.clock.Now().Before(issued.expiresAt) {
		return nil, http.StatusUnauthorized
	}
	return issued.user, http.StatusOK
}

// sessionFor returns the session ID and a snapshot of the session named by
// the request cookie.
func (s *DrupalServer) sessionFor(r *http.Request) (string, *drupalSession) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[cookie.Value]
	if !ok {
		return cookie.Value, nil
	}
	snapshot := *session
	return cookie.Value, &snapshot
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func oauthError(w http.ResponseWriter, status int, code, description string) {
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	writeJSON(w, status, body)
}

func jsonAPIError(status int, detail string) map[string]interface{} {
	return map[string]interface{}{
		"errors": []map[string]string{{
			"status": strconv.Itoa(status),
			"title":  http.StatusText(status),
			"detail": detail,
		}},
	}
}

func randomToken(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("mock: failed to generate token: %v", err))
	}
	return prefix + "-" + hex.EncodeToString(b)
}
