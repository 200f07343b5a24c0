package user

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AnonymousSession binds a bearer token to a stable numeric user ID so a
// client keeps its identity and profile across reconnects.
type AnonymousSession struct {
	Token     string    `json:"token"`
	UserID    ID        `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	// disconnectedAt is set when the client disconnects. A zero value
	// means the client is currently connected.
	disconnectedAt time.Time
}

// Connected returns true if the session has an active connection.
func (s *AnonymousSession) Connected() bool {
	return s.disconnectedAt.IsZero()
}

// SessionStore manages anonymous sessions keyed by token. Sessions whose
// client stays disconnected longer than ttl are forgotten.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*AnonymousSession
	ttl      time.Duration

	stop      chan struct{}
	closeOnce sync.Once
}

// NewSessionStore creates an anonymous session store. A ttl of zero keeps
// disconnected sessions forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*AnonymousSession),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.reapLoop()
	}
	return s
}

// Create generates a new session with a random token and user ID.
func (s *SessionStore) Create() *AnonymousSession {
	sess := &AnonymousSession{
		Token:     uuid.NewString(),
		UserID:    generateID(),
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for the given token, or nil if not found.
func (s *SessionStore) Get(token string) *AnonymousSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[token]
}

// Resume returns the session for token and marks it connected. It returns
// nil if the token is unknown or another connection already holds it.
func (s *SessionStore) Resume(token string) *AnonymousSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || sess.Connected() {
		return nil
	}
	sess.disconnectedAt = time.Time{}
	return sess
}

// MarkDisconnected records the time the client disconnected.
func (s *SessionStore) MarkDisconnected(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[token]; ok {
		sess.disconnectedAt = time.Now()
	}
}

// Count returns the number of sessions.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the background reaper. It is safe to call more than once.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
}

// reapLoop periodically removes expired disconnected sessions until Close.
func (s *SessionStore) reapLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.reap(now)
		}
	}
}

// reap removes disconnected sessions older than the TTL.
func (s *SessionStore) reap(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if !sess.Connected() && now.Sub(sess.disconnectedAt) > s.ttl {
			delete(s.sessions, token)
		}
	}
}

// generateID returns a random positive 53-bit ID so it survives a round
// trip through JSON numbers.
func generateID() ID {
	var b [8]byte
	rand.Read(b[:])
	id := ID(binary.BigEndian.Uint64(b[:]) & (1<<53 - 1))
	if id == 0 {
		id = 1
	}
	return id
}
