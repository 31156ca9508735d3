// ABOUTME: In-memory MCP session store for the HTTP binding.
// ABOUTME: Sessions are bound to the bearer credential that created them.

package mcp

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// mcpSession tracks an active MCP client session.
type mcpSession struct {
	id              string
	protocolVersion string
	ownerHash       string // sha256 of the bearer token, empty when auth is off
	createdAt       time.Time
	lastSeen        time.Time
}

// sessionStore manages active MCP sessions (in-memory).
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*mcpSession
	idleTTL  time.Duration
	now      func() time.Time
}

func newSessionStore(idleTTL time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*mcpSession),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (s *sessionStore) create(protocolVersion, ownerToken string) *mcpSession {
	now := s.now()
	sess := &mcpSession{
		id:              uuid.New().String(),
		protocolVersion: protocolVersion,
		ownerHash:       hashOwner(ownerToken),
		createdAt:       now,
		lastSeen:        now,
	}
	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

// touch returns the session and marks it used. Idle sessions are dropped.
func (s *sessionStore) touch(id string) (*mcpSession, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

func (s *sessionStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *sessionStore) expired(sess *mcpSession, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(sess.lastSeen) > s.idleTTL
}

// sweepLocked drops idle sessions. Caller holds mu.
func (s *sessionStore) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}

// ownedBy reports whether token created sess.
func (sess *mcpSession) ownedBy(token string) bool {
	if sess.ownerHash == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(sess.ownerHash), []byte(hashOwner(token))) == 1
}

func hashOwner(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
