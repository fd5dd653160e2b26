package services

import (
	"sync"

	"liverelay/internal/core/domain"
	"liverelay/internal/core/ports"
)

// Registry is the set of live subscribers for one transport.
type Registry struct {
	transport domain.Transport
	capacity  int

	mu      sync.RWMutex
	members map[ports.Subscriber]struct{}
}

// NewRegistry creates an empty registry. capacity <= 0 means unlimited.
func NewRegistry(transport domain.Transport, capacity int) *Registry {
	return &Registry{
		transport: transport,
		capacity:  capacity,
		members:   make(map[ports.Subscriber]struct{}),
	}
}

func (r *Registry) Transport() domain.Transport {
	return r.transport
}

// Add inserts sub. Adding a present member is a no-op.
func (r *Registry) Add(sub ports.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sub]; ok {
		return nil
	}
	if r.capacity > 0 && len(r.members) >= r.capacity {
		return domain.ErrRegistryFull
	}
	r.members[sub] = struct{}{}
	return nil
}

// Remove deletes sub and reports whether it was present.
func (r *Registry) Remove(sub ports.Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sub]; !ok {
		return false
	}
	delete(r.members, sub)
	return true
}

func (r *Registry) Contains(sub ports.Subscriber) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[sub]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Snapshot copies the current members. The copy is safe to iterate while
// other goroutines add or remove subscribers.
func (r *Registry) Snapshot() []ports.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]ports.Subscriber, 0, len(r.members))
	for sub := range r.members {
		subs = append(subs, sub)
	}
	return subs
}

// ForEach calls fn for every member of a snapshot, without holding the lock.
func (r *Registry) ForEach(fn func(sub ports.Subscriber)) {
	for _, sub := range r.Snapshot() {
		fn(sub)
	}
}
