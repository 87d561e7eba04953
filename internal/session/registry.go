package session

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrSessionExists   = errors.New("session id already registered")
	ErrSessionNotFound = errors.New("session not found")
)

// Registry indexes live sessions by id and by attached connection.
// Lock order is Registry before Session: registry methods may read a
// session's fields, but nothing holding a session's serialization may
// call back into the registry write path.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byConn   map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byConn:   make(map[string]string),
	}
}

// Add registers a session under its id.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return ErrSessionExists
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops a session and every connection mapping pointing at it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	for conn, sid := range r.byConn {
		if sid == id {
			delete(r.byConn, conn)
		}
	}
}

// BindConn points a connection at a session for ByConn lookups.
func (r *Registry) BindConn(connID, sessionID string) {
	r.mu.Lock()
	r.byConn[connID] = sessionID
	r.mu.Unlock()
}

// UnbindConn removes a connection mapping.
func (r *Registry) UnbindConn(connID string) {
	r.mu.Lock()
	delete(r.byConn, connID)
	r.mu.Unlock()
}

// ByConn returns the session a connection is attached to.
func (r *Registry) ByConn(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[sid]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Summaries lists every session, ordered by id for stable output.
func (r *Registry) Summaries() []Summary {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Summarize())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Idle returns the sessions whose last activity is older than ttl at
// the given instant. The sweep owner decides what eviction entails.
func (r *Registry) Idle(ttl time.Duration, now time.Time) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if now.Sub(s.LastActivity()) > ttl {
			out = append(out, s)
		}
	}
	return out
}
