package oauth

import (
	"context"
	"sync"
	"time"

	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
	pkgoauth "github.com/0xchamin/agent-security-and-identity/pkg/oauth"
)

// DefaultSessionTTL bounds how long a user may take to return from the
// provider's consent screen.
const DefaultSessionTTL = 10 * time.Minute

// AuthSession is the server-side record of one pending login.
type AuthSession struct {
	State     string                 `json:"state"`
	Provider  string                 `json:"provider"`
	PKCE      pkgoauth.PKCEChallenge `json:"pkce"`
	Scopes    []string               `json:"scopes,omitempty"`
	Subject   string                 `json:"subject,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// SessionStore holds pending authorization sessions.
//
// Take must be atomic: for a given state at most one caller ever receives
// the session, and a taken session is gone for everyone.
type SessionStore interface {
	Save(ctx context.Context, s *AuthSession) error
	Take(ctx context.Context, state string) (*AuthSession, error)
	Close() error
}

// MemorySessionStore keeps sessions in process memory and sweeps expired
// ones in the background.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*AuthSession
	ttl      time.Duration
	now      func() time.Time

	stopOnce    sync.Once
	stopCleanup chan struct{}
}

// NewMemorySessionStore creates a store with the given TTL (DefaultSessionTTL
// when zero) and starts its cleanup loop.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &MemorySessionStore{
		sessions:    make(map[string]*AuthSession),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemorySessionStore) Save(_ context.Context, sess *AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.State] = &cp
	return nil
}

func (s *MemorySessionStore) Take(_ context.Context, state string) (*AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[state]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.sessions, state)

	if s.now().Sub(sess.CreatedAt) > s.ttl {
		logging.Warn("OAuth", "Authorization session expired: state=%s age=%v",
			logging.TruncateID(state), s.now().Sub(sess.CreatedAt))
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Len reports the number of pending sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the background cleanup goroutine.
func (s *MemorySessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

func (s *MemorySessionStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemorySessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for state, sess := range s.sessions {
		if s.now().Sub(sess.CreatedAt) > s.ttl {
			delete(s.sessions, state)
			count++
		}
	}
	if count > 0 {
		logging.Debug("OAuth", "Cleaned up %d expired authorization sessions", count)
	}
}
