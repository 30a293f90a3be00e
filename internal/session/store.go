// Package session holds the in-memory set of chat sessions and the identity
// of the active one.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/helia/internal/domain"
)

// Store owns every session and the active pointer. All methods are safe for
// concurrent use; returned sessions are copies.
type Store struct {
	mu       sync.RWMutex
	sessions []*domain.Session
	index    map[string]*domain.Session
	activeID string

	newID func() string
	now   func() time.Time
}

// NewStore creates an empty store. Call Restore to seed it.
func NewStore() *Store {
	return &Store{
		index: make(map[string]*domain.Session),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Create allocates a new session, inserts it and makes it active.
func (s *Store) Create() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.insertLocked()
	s.activeID = sess.ID
	s.repairLocked(false)
	return sess.Clone()
}

// DeleteActive removes the active session and its history. The earliest
// created remaining session becomes active; with none left the active id is
// cleared. A replacement session is never created here.
func (s *Store) DeleteActive() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" {
		return "", domain.ErrNoActiveSession
	}
	deleted := s.activeID
	for i, sess := range s.sessions {
		if sess.ID == deleted {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	delete(s.index, deleted)
	s.activeID = ""
	s.repairLocked(false)
	return deleted, nil
}

// SetActive switches the active pointer.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return fmt.Errorf("set active %q: %w", id, domain.ErrNotFound)
	}
	s.activeID = id
	s.repairLocked(false)
	return nil
}

// Append adds msg to the end of the session's history and returns a copy of
// the history as it stood right after the append.
func (s *Store) Append(id string, msg domain.Message) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("append to %q: %w", id, domain.ErrNotFound)
	}
	sess.History = append(sess.History, msg)
	s.repairLocked(false)
	return sess.Clone().History, nil
}

// Snapshot returns a deep copy of all sessions and the active id.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.Snapshot{
		Sessions: make([]domain.Session, 0, len(s.sessions)),
		ActiveID: s.activeID,
	}
	for _, sess := range s.sessions {
		snap.Sessions = append(snap.Sessions, sess.Clone())
	}
	return snap
}

// Restore replaces the in-memory state with snap. A stale active id falls
// back to the first session; an empty set gets one default session.
func (s *Store) Restore(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make([]*domain.Session, 0, len(snap.Sessions))
	s.index = make(map[string]*domain.Session, len(snap.Sessions))
	for _, sess := range snap.Sessions {
		if sess.ID == "" {
			continue
		}
		if _, dup := s.index[sess.ID]; dup {
			continue
		}
		c := sess.Clone()
		s.sessions = append(s.sessions, &c)
		s.index[c.ID] = &c
	}
	s.activeID = snap.ActiveID
	s.repairLocked(true)
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.index[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("get %q: %w", id, domain.ErrNotFound)
	}
	return sess.Clone(), nil
}

// Active returns a copy of the active session.
func (s *Store) Active() (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.index[s.activeID]
	if !ok {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	return sess.Clone(), nil
}

// ActiveID returns the active session id, or "" when there are no sessions.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// IsActive reports whether id is the active session.
func (s *Store) IsActive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return id != "" && s.activeID == id
}

// List returns copies of all sessions in creation order.
func (s *Store) List() []domain.Session {
	return s.Snapshot().Sessions
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) insertLocked() *domain.Session {
	sess := &domain.Session{
		ID:        s.newID(),
		Name:      fmt.Sprintf("Chat %d", len(s.sessions)+1),
		CreatedAt: s.now(),
		History:   []domain.Message{},
	}
	s.sessions = append(s.sessions, sess)
	s.index[sess.ID] = sess
	return sess
}

// repairLocked re-establishes the active-session invariant. Every mutating
// entry point ends with it. Only Restore passes allowCreate.
func (s *Store) repairLocked(allowCreate bool) {
	if len(s.sessions) == 0 {
		if !allowCreate {
			s.activeID = ""
			return
		}
		s.insertLocked()
	}
	if _, ok := s.index[s.activeID]; !ok {
		s.activeID = s.sessions[0].ID
	}
}
