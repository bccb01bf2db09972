package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry is the shared bookkeeping store mapping (scopeKey, sessionId)
// to sessions.
//
// Session ids are globally unique across scopes, but a session is only
// visible to callers presenting the scope key it was registered under.
// Cross-scope lookups resolve to ErrSessionNotFound, identical to an
// unknown id, so foreign sessions do not leak existence.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// order holds each scope's session ids in registration order.
	order map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		order:    make(map[string][]string),
	}
}

// Register stores a new session under scopeKey, assigns its id, and
// returns the id. Returns ErrDuplicateSession on an id collision, which
// cannot happen under a correct id generator.
func (r *Registry) Register(scopeKey string, s *Session) (string, error) {
	if scopeKey == "" {
		scopeKey = DefaultScope
	}

	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}

	s.ID = id
	s.ScopeKey = scopeKey
	r.sessions[id] = s
	r.order[scopeKey] = append(r.order[scopeKey], id)

	return id, nil
}

// Get returns the session only if it was registered under scopeKey. An
// unknown id and a foreign-scope id both return ErrSessionNotFound.
func (r *Registry) Get(scopeKey, id string) (*Session, error) {
	if scopeKey == "" {
		scopeKey = DefaultScope
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || s.ScopeKey != scopeKey {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the scope's sessions in registration order.
func (r *Registry) List(scopeKey string) []*Session {
	if scopeKey == "" {
		scopeKey = DefaultScope
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.order[scopeKey]
	result := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.sessions[id]; ok {
			result = append(result, s)
		}
	}
	return result
}

// Remove evicts a session. Same visibility rule as Get: removing a
// foreign-scope id reports false, exactly like an unknown id.
func (r *Registry) Remove(scopeKey, id string) bool {
	if scopeKey == "" {
		scopeKey = DefaultScope
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.ScopeKey != scopeKey {
		return false
	}

	delete(r.sessions, id)
	ids := r.order[scopeKey]
	for i, sid := range ids {
		if sid == id {
			r.order[scopeKey] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return true
}

// Reset clears all sessions across all scopes. For process-wide
// reinitialization and test isolation, not the steady-state contract.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*Session)
	r.order = make(map[string][]string)
}

// Count returns the total number of sessions across all scopes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CountScope returns the number of sessions registered under scopeKey.
func (r *Registry) CountScope(scopeKey string) int {
	if scopeKey == "" {
		scopeKey = DefaultScope
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order[scopeKey])
}

// Sentinel errors.
var (
	// ErrSessionNotFound is returned when an id is unknown or belongs to
	// a different scope.
	ErrSessionNotFound = fmt.Errorf("session not found")

	// ErrDuplicateSession is returned when a generated id collides.
	ErrDuplicateSession = fmt.Errorf("duplicate session id")
)
