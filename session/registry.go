package session

import "sync"

// Registry tracks live guarded sessions by id. Safe for concurrent
// use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Guard
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Guard)}
}

// Add registers g under its session id, replacing any previous entry.
func (r *Registry) Add(g *Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[g.ID()] = g
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Guard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.sessions[id]
	return g, ok
}

// Remove drops the session with the given id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Active returns the ids of all registered sessions.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
