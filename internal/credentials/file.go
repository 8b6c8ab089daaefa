package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"recipebox/pkg/logging"
)

// DefaultFileName is the name of the credentials file inside the store directory.
const DefaultFileName = "credentials.json"

// FileStore persists credentials to a single JSON file.
//
// SECURITY: This store handles sensitive credentials.
//   - The file is created with 0600 permissions (owner read/write only)
//   - The directory is created with 0700 permissions (owner only)
//   - Writes go through a temporary file and rename, so a crash never
//     leaves a truncated file behind
//   - Values are NEVER logged (only key names)
type FileStore struct {
	mu      sync.RWMutex
	path    string
	entries map[string]fileEntry
	now     func() time.Time
}

type fileEntry struct {
	Value    string     `json:"value"`
	Expires  *time.Time `json:"expires,omitempty"`
	SameSite string     `json:"same_site,omitempty"`
	Secure   bool       `json:"secure,omitempty"`
}

// FileStoreConfig configures the file store.
type FileStoreConfig struct {
	// Dir is the directory holding the credentials file.
	// Defaults to ~/.config/recipebox.
	Dir string

	// Now overrides the clock used for expiry checks.
	Now func() time.Time
}

// NewFileStore opens the credentials file in cfg.Dir, creating the
// directory if needed. A missing file is an empty store.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	dir := cfg.Dir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".config", "recipebox")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &FileStore{
		path:    filepath.Join(dir, DefaultFileName),
		entries: make(map[string]fileEntry),
		now:     now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the credentials file.
func (s *FileStore) Path() string {
	return s.path
}

// Set implements Store.Set.
func (s *FileStore) Set(_ context.Context, key, value string, opts SetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := fileEntry{
		Value:    value,
		SameSite: sameSiteName(opts.SameSite),
		Secure:   opts.Secure,
	}
	if !opts.Expires.IsZero() {
		expires := opts.Expires.UTC()
		entry.Expires = &expires
	}
	s.entries[key] = entry

	if err := s.persistLocked(); err != nil {
		logging.Audit("CredentialStore", "credential_store_failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return err
	}

	attrs := []slog.Attr{slog.String("key", key)}
	if entry.Expires != nil {
		attrs = append(attrs, slog.String("expires", entry.Expires.Format(time.RFC3339)))
	}
	logging.Audit("CredentialStore", "credential_stored", attrs...)
	return nil
}

// Get implements Store.Get.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || s.expiredLocked(entry) {
		return "", false, nil
	}
	return entry.Value, true, nil
}

// Remove implements Store.Remove.
func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)

	if err := s.persistLocked(); err != nil {
		return err
	}
	logging.Audit("CredentialStore", "credential_removed", slog.String("key", key))
	return nil
}

// Keys implements Store.Keys.
func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for key, entry := range s.entries {
		if !s.expiredLocked(entry) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// RemoveMatching implements Store.RemoveMatching.
func (s *FileStore) RemoveMatching(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}

	if err := s.persistLocked(); err != nil {
		return 0, err
	}
	logging.Audit("CredentialStore", "credentials_cleared",
		slog.String("prefix", prefix),
		slog.Int("count", removed),
	)
	return removed, nil
}

// Close implements io.Closer. The file is written on every change, so there
// is nothing to flush.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) expiredLocked(entry fileEntry) bool {
	return entry.Expires != nil && expired(*entry.Expires, s.now())
}

// load reads the credentials file and drops entries that have expired.
func (s *FileStore) load() error {
	// #nosec G304 -- path is derived from configuration, not request input
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read credentials file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	entries := make(map[string]fileEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse credentials file %s: %w", s.path, err)
	}
	for key, entry := range entries {
		if s.expiredLocked(entry) {
			continue
		}
		s.entries[key] = entry
	}
	return nil
}

// persistLocked writes the live entries to disk. Caller holds s.mu.
func (s *FileStore) persistLocked() error {
	live := make(map[string]fileEntry, len(s.entries))
	for key, entry := range s.entries {
		if !s.expiredLocked(entry) {
			live[key] = entry
		}
	}

	data, err := json.MarshalIndent(live, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

func sameSiteName(mode http.SameSite) string {
	switch mode {
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return ""
	}
}
