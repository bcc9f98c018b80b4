package player

import "sync"

// Registry is the process-wide username to Player mapping. Entries are
// created on first registration and live for the life of the process.
type Registry struct {
	mu      sync.Mutex
	byName  map[string]*Player
	inOrder []*Player
}

// NewRegistry returns an empty player registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Player)}
}

// Register returns the player registered under name, creating it with the
// initial rating if the name has not been seen before.
func (r *Registry) Register(name string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byName[name]; ok {
		return p
	}
	p := newPlayer(name)
	r.byName[name] = p
	r.inOrder = append(r.inOrder, p)
	return p
}

// Count returns the number of distinct player names ever registered.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

// Snapshot returns all registered players in registration order.
func (r *Registry) Snapshot() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Player, len(r.inOrder))
	copy(out, r.inOrder)
	return out
}
