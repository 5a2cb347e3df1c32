// Package auth gates the dashboard behind a credential check. It is not an
// identity system: credentials come from configuration and sessions live in
// memory until logout or idle expiry.
package auth

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Verifier decides whether a username/password pair may enter.
type Verifier interface {
	Verify(username, password string) bool
}

// StaticVerifier accepts exactly one configured pair.
type StaticVerifier struct {
	username string
	password string
}

// NewStaticVerifier returns a verifier for the given pair.
func NewStaticVerifier(username, password string) *StaticVerifier {
	return &StaticVerifier{username: username, password: password}
}

// Verify compares both fields in constant time.
func (v *StaticVerifier) Verify(username, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(username), []byte(v.username))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(v.password))
	return u&p == 1
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(username, password string) bool

// Verify calls f.
func (f VerifierFunc) Verify(username, password string) bool { return f(username, password) }

// Session is one browser session.
type Session struct {
	ID            string
	Authenticated bool
	CreatedAt     time.Time
	LastSeen      time.Time
}

// Store limits.
const (
	DefaultIdleTimeout = 12 * time.Hour
	DefaultMaxSessions = 10000
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIdleTimeout expires sessions not seen for d. Zero or negative keeps the
// default.
func WithIdleTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithMaxSessions caps the number of live sessions. When full, the least
// recently seen session is evicted.
func WithMaxSessions(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// Store holds authenticated sessions keyed by ID. Visitors that have not
// logged in have no entry.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time
}

// NewStore creates an empty session store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions:    make(map[string]*Session),
		idleTimeout: DefaultIdleTimeout,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the live session with the given ID and marks it seen.
// An expired session is removed and reported as missing.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return Session{}, false
	}
	sess.LastSeen = now
	return *sess, true
}

// Login checks the credentials and, on success, issues a new authenticated
// session under a fresh ID. The previous session, if any, is revoked so an ID
// handed out before login never becomes authenticated. A failed attempt
// changes nothing; retries are unlimited.
func (s *Store) Login(prevID string, v Verifier, username, password string) (Session, bool) {
	if !v.Verify(username, password) {
		return Session{}, false
	}
	now := s.now()
	sess := &Session{ID: uuid.NewString(), Authenticated: true, CreatedAt: now, LastSeen: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, prevID)
	s.sweep(now)
	if len(s.sessions) >= s.maxSessions {
		s.evictOldest()
	}
	s.sessions[sess.ID] = sess
	return *sess, true
}

// Logout removes the session.
func (s *Store) Logout(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep(s.now())
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastSeen) > s.idleTimeout
}

// sweep requires s.mu.
func (s *Store) sweep(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// evictOldest requires s.mu.
func (s *Store) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range s.sessions {
		if oldestID == "" || sess.LastSeen.Before(oldest) {
			oldestID, oldest = id, sess.LastSeen
		}
	}
	delete(s.sessions, oldestID)
}
