package resume

import (
	"time"

	"github.com/deploysync/deploysync/internal/jsonstore"
)

// DefaultCleanupAge is how long completed sessions are kept before cleanup.
const DefaultCleanupAge = 24 * time.Hour

// TransferSessionStore is the single JSON document holding every session for
// this install, across all projects.
type TransferSessionStore struct {
	Sessions map[string]*TransferSession `json:"sessions"`
}

// Store persists the session ledger at one fixed path (transfer_sessions.json).
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the ledger; a missing file is an empty ledger.
func (s *Store) Load() (*TransferSessionStore, error) {
	store := &TransferSessionStore{Sessions: make(map[string]*TransferSession)}
	ok, err := jsonstore.Load(s.path, store)
	if err != nil {
		return nil, err
	}
	if ok && store.Sessions == nil {
		store.Sessions = make(map[string]*TransferSession)
	}
	return store, nil
}

func (s *Store) Save(store *TransferSessionStore) error {
	return jsonstore.Save(s.path, store)
}

// CreateSession registers a new open session for the project and returns it.
func (t *TransferSessionStore) CreateSession(projectID string) *TransferSession {
	session := NewSession(projectID)
	t.Sessions[session.ID] = session
	return session
}

// OpenSession returns the most recently started non-completed session for the
// project, or nil. By convention only one open session exists per project;
// when older ones linger the latest supersedes them.
func (t *TransferSessionStore) OpenSession(projectID string) *TransferSession {
	var latest *TransferSession
	for _, s := range t.Sessions {
		if s.ProjectID != projectID || s.Completed {
			continue
		}
		if latest == nil || s.StartedAt.After(latest.StartedAt) {
			latest = s
		}
	}
	return latest
}

// CompleteSession marks the session done. It stays in the ledger until cleanup.
func (t *TransferSessionStore) CompleteSession(sessionID string) {
	if s, ok := t.Sessions[sessionID]; ok {
		s.Completed = true
	}
}

// Cleanup removes completed sessions older than maxAge. Open sessions are
// never removed regardless of age. Returns the number removed.
func (t *TransferSessionStore) Cleanup(maxAge time.Duration, now time.Time) int {
	removed := 0
	for id, s := range t.Sessions {
		if s.Completed && now.Sub(s.StartedAt) > maxAge {
			delete(t.Sessions, id)
			removed++
		}
	}
	return removed
}
