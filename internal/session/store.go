package session

import (
	"sync"

	"github.com/google/uuid"
)

// Session holds the state scoped to one opaque client token: the configured
// credential, the model selection and the conversation history.
//
// The embedded mutex serializes chat turns for the session and guards every
// field. Callers hold it across the whole append/complete/rollback sequence
// so the history invariant survives double-submits from the same session.
type Session struct {
	sync.Mutex

	ID      string
	APIKey  string
	Model   string
	History *Conversation
}

// Store owns the lifecycle of sessions. It is injected into request
// handling rather than accessed as ambient global state, so a shared or
// durable backend can be substituted without touching call sites.
type Store interface {
	// GetOrCreate returns the session for token, creating it on first
	// contact.
	GetOrCreate(token string) *Session
	// Get returns the session for token if it exists.
	Get(token string) (*Session, bool)
	// Delete destroys all state of the session, credential included.
	Delete(token string)
	// NewToken mints an opaque, unguessable session token.
	NewToken() string
}

// MemoryStore is the in-process Store implementation. Sessions survive only
// for the lifetime of the process; this is a documented limitation, not a
// defect.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for token, creating it on first contact.
func (s *MemoryStore) GetOrCreate(token string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the write lock; another request may have created it.
	if sess, ok := s.sessions[token]; ok {
		return sess
	}
	sess = &Session{ID: token, History: NewConversation()}
	s.sessions[token] = sess
	return sess
}

// Get returns the session for token if it exists.
func (s *MemoryStore) Get(token string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	return sess, ok
}

// Delete destroys all state of the session, credential included.
func (s *MemoryStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// NewToken mints an opaque session token.
func (s *MemoryStore) NewToken() string {
	return uuid.NewString()
}
