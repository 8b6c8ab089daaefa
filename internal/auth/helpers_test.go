package auth

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"recipebox/internal/credentials"
	"recipebox/internal/testing/mock"

	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "test-client"
	testClientSecret = "test-secret"
	testRedirectURI  = "http://localhost:3000/auth/callback"
)

// recordingStore remembers the options of the last write per key.
type recordingStore struct {
	credentials.Store

	mu   sync.Mutex
	opts map[string]credentials.SetOptions
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: credentials.NewMemoryStore(), opts: make(map[string]credentials.SetOptions)}
}

func (s *recordingStore) Set(ctx context.Context, key, value string, opts credentials.SetOptions) error {
	s.mu.Lock()
	s.opts[key] = opts
	s.mu.Unlock()
	return s.Store.Set(ctx, key, value, opts)
}

func (s *recordingStore) optionsFor(key string) credentials.SetOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts[key]
}

type testEnv struct {
	server *mock.DrupalServer
	store  *recordingStore
	clock  *mock.MockClock
	client *Client
	auth   *Authenticator
}

func newTestEnv(t *testing.T, cfgs ...mock.DrupalServerConfig) *testEnv {
	t.Helper()

	clock := mock.NewMockClock(time.Now())
	cfg := mock.DrupalServerConfig{}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	cfg.ClientID = testClientID
	cfg.ClientSecret = testClientSecret
	cfg.Clock = clock

	server := mock.NewDrupalServer(cfg)
	t.Cleanup(server.Close)

	store := newRecordingStore()
	client := NewClient(store, Config{
		BaseURL:      server.URL,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	}, WithHTTPClient(server.Client()), WithClock(clock))

	return &testEnv{
		server: server,
		store:  store,
		clock:  clock,
		client: client,
		auth:   NewAuthenticator(client),
	}
}

// loginOAuth runs a code exchange so valid OAuth credentials are stored.
func (e *testEnv) loginOAuth(t *testing.T) *TokenResponse {
	t.Helper()
	token, err := e.client.ExchangeCodeForTokens(context.Background(), e.server.IssueCode(), testRedirectURI)
	require.NoError(t, err)
	return token
}

// loginSession runs a session login as alice.
func (e *testEnv) loginSession(t *testing.T) *SessionLoginResponse {
	t.Helper()
	resp, err := e.client.LoginWithSession(context.Background(), "alice", "pw")
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, key string) (string, bool) {
	t.Helper()
	value, ok, err := e.store.Get(context.Background(), key)
	require.NoError(t, err)
	return value, ok
}

func (e *testEnv) set(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, e.store.Set(context.Background(), key, value, credentials.DefaultOptions(false)))
}

// setAccessToken stores an access token expiring at expiresAt.
func (e *testEnv) setAccessToken(t *testing.T, token string, expiresAt time.Time) {
	t.Helper()
	e.set(t, credentials.KeyAccessToken, token)
	e.set(t, credentials.KeyExpiresAt, strconv.FormatInt(expiresAt.UnixMilli(), 10))
}

var allKeys = []string{
	credentials.KeyState,
	credentials.KeyAccessToken,
	credentials.KeyRefreshToken,
	credentials.KeyExpiresAt,
	credentials.KeySession,
	credentials.KeyCSRFToken,
	credentials.KeyLogoutToken,
}
