// Package session persists client-side session state between runs. It is a
// small file-backed key-value store: one JSON object per file, read once at
// component start, written through on change. Absent or malformed state is
// never an error; readers fall back to the unauthenticated default.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"expensedesk/internal/core"
)

// UserKey is the storage key holding the serialized session user.
const UserKey = "user"

// TokenKey is the storage key holding the API bearer token.
const TokenKey = "token"

// Store is a process-wide key-value store persisted to a single JSON file.
// Values survive restarts; reads are served from the last loaded snapshot.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path. The file does not
// need to exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the conventional per-user location of the session file.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "expensedesk", "session.json")
	}
	return ".expensedesk-session.json"
}

func (s *Store) load() map[string]json.RawMessage {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]json.RawMessage{}
	}
	var kv map[string]json.RawMessage
	if err := json.Unmarshal(data, &kv); err != nil {
		slog.Warn("Session file unreadable, treating as empty",
			"path", s.path, "error", err)
		return map[string]json.RawMessage{}
	}
	return kv
}

func (s *Store) write(kv map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.Marshal(kv)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Get decodes the value stored under key into v. It returns false for a
// missing key, a missing file, or a value that does not decode; it never
// returns an error to the caller.
func (s *Store) Get(key string, v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.load()[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		slog.Warn("Session value unreadable", "key", key, "error", err)
		return false
	}
	return true
}

// Put stores v under key, persisting immediately.
func (s *Store) Put(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session value %q: %w", key, err)
	}
	kv := s.load()
	kv[key] = raw
	return s.write(kv)
}

// Delete removes a single key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv := s.load()
	if _, ok := kv[key]; !ok {
		return nil
	}
	delete(kv, key)
	return s.write(kv)
}

// Clear removes all persisted session state. Used by logout, which must
// succeed locally regardless of the remote call outcome.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// CurrentUser reads the persisted session user. The second return value is
// false when no valid user is stored; a malformed value degrades to the
// unauthenticated state rather than failing.
func (s *Store) CurrentUser() (core.SessionUser, bool) {
	var u core.SessionUser
	if !s.Get(UserKey, &u) {
		return core.SessionUser{}, false
	}
	if u.Validate() != nil {
		return core.SessionUser{}, false
	}
	return u, true
}

// SaveUser persists the session user, written at login.
func (s *Store) SaveUser(u core.SessionUser) error {
	return s.Put(UserKey, u)
}

// Token reads the persisted API token, empty when absent.
func (s *Store) Token() string {
	var t string
	if !s.Get(TokenKey, &t) {
		return ""
	}
	return t
}

// SaveToken persists the API bearer token alongside the user.
func (s *Store) SaveToken(token string) error {
	return s.Put(TokenKey, token)
}
