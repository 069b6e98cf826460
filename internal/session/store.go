// Package session is the single source of truth for "who is calling".
//
// The store persists the credential and the identity blob in a small sqlite
// database so a console restart does not log the user out. The gateway reads
// the credential synchronously before each request; there is no asynchronous
// propagation between a Save/Clear and the next outbound call.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Durable keys. Consumers never read these directly.
const (
	keyCredential = "credential"
	keyIdentity   = "identity"
)

// Identity describes the authenticated user as reported by the backend.
type Identity struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	QuotaUsed   int    `json:"quota_used"`
	QuotaLimit  int    `json:"quota_limit"`
}

// Store holds the current credential and identity, persisted across restarts.
type Store struct {
	db *sql.DB

	mu         sync.RWMutex
	credential string
	identity   *Identity
	issuedAt   time.Time
}

// Open opens (creating if needed) the session database at path and loads any
// persisted session. Load is fail-safe: a corrupt identity blob clears the
// persisted session instead of returning an error.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating session dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS session (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing session db: %w", err)
	}

	s := &Store{db: db}
	s.load()
	return s, nil
}

// load reads the persisted credential and identity into memory.
// Any inconsistency (one key missing, unparseable identity) wipes both keys.
func (s *Store) load() {
	var credential, identityJSON string
	credErr := s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, keyCredential).Scan(&credential)
	idErr := s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, keyIdentity).Scan(&identityJSON)

	if credErr != nil || idErr != nil {
		if credErr != sql.ErrNoRows || idErr != sql.ErrNoRows {
			// Partial session on disk. Wipe it rather than trust it.
			_ = s.Clear()
		}
		return
	}

	var id Identity
	if err := json.Unmarshal([]byte(identityJSON), &id); err != nil {
		log.Warn().Err(err).Msg("session: corrupt identity blob, clearing persisted session")
		_ = s.Clear()
		return
	}

	s.mu.Lock()
	s.credential = credential
	s.identity = &id
	s.mu.Unlock()
}

// Save persists the credential and identity atomically. If the write fails,
// the in-memory session is left unchanged.
func (s *Store) Save(credential string, identity Identity) error {
	blob, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	upsert := `INSERT INTO session (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.Exec(upsert, keyCredential, credential); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("saving credential: %w", err)
	}
	if _, err := tx.Exec(upsert, keyIdentity, string(blob)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("saving identity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.mu.Lock()
	s.credential = credential
	id := identity
	s.identity = &id
	s.issuedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// Clear removes the session from persistence and memory. Idempotent.
// Returns true if an authenticated session was actually torn down, which
// lets the caller fire teardown side effects exactly once.
func (s *Store) Clear() bool {
	s.mu.Lock()
	hadSession := s.credential != "" && s.identity != nil
	s.credential = ""
	s.identity = nil
	s.issuedAt = time.Time{}
	s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM session WHERE key IN (?, ?)`, keyCredential, keyIdentity); err != nil {
		log.Error().Err(err).Msg("session: failed to clear persisted session")
	}
	return hadSession
}

// Credential returns the current credential, or "" when unauthenticated.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Current returns a copy of the identity, or nil when unauthenticated.
func (s *Store) Current() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// IsAuthenticated reports whether both credential and identity are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential != "" && s.identity != nil
}

// IsPrivileged reports whether the current identity holds the given role.
func (s *Store) IsPrivileged(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.Role == role
}

// IssuedAt returns when the current session was saved.
func (s *Store) IssuedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issuedAt
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
