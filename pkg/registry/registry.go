// Package registry keeps an in-memory index of negotiation sessions so
// callers can look up runs (and their spawned children) by ID.
package registry

import (
	"sync"

	"github.com/towow-net/towow/pkg/models"
)

// Registry is a mutex-guarded session index. The zero value is not usable;
// construct with New.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*models.NegotiationSession
	children map[string][]string
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*models.NegotiationSession),
		children: make(map[string][]string),
	}
}

// Register adds or replaces a session. Child sessions are linked to their
// parent. Safe to pass to the engine as its register-session callback.
func (r *Registry) Register(session *models.NegotiationSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.NegotiationID] = session
	if session.ParentNegotiationID != "" {
		r.children[session.ParentNegotiationID] = append(
			r.children[session.ParentNegotiationID], session.NegotiationID)
	}
}

// Get returns the session with the given ID, or nil.
func (r *Registry) Get(negotiationID string) *models.NegotiationSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[negotiationID]
}

// Children returns the IDs of sessions registered with the given parent.
func (r *Registry) Children(negotiationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.children[negotiationID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// List returns all registered sessions in unspecified order.
func (r *Registry) List() []*models.NegotiationSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.NegotiationSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
