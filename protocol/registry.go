package protocol

import (
	"sync"

	"github.com/chatcore/corerun/corerrs"
)

// Registry is the ProtocolManager: protocols register by id, name
// collisions are rejected.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]Protocol
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Protocol)}
}

// Register adds p, keyed by p.ID(). Returns false if the id is already
// registered.
func (r *Registry) Register(p Protocol) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.ID()]; exists {
		return false
	}
	r.byID[p.ID()] = p
	r.order = append(r.order, p.ID())
	return true
}

// Unregister removes the protocol with the given id. Returns false if
// absent.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; !exists {
		return false
	}
	delete(r.byID, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Find looks up a registered protocol by id.
func (r *Registry) Find(id string) (Protocol, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, corerrs.InvalidSettings("no protocol registered with id %q", id)
	}
	return p, nil
}

// All returns every registered protocol, in registration order.
func (r *Registry) All() []Protocol {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Protocol, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
