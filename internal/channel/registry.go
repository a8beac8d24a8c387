package channel

import (
	"sync"

	"github.com/ginger-society/ginger-ws/internal/metrics"
)

// Registry maps channel names to broadcast groups. Groups are created on
// first use and never removed; the name set grows with the distinct channels
// seen over the process lifetime, which is an accepted trade-off for the
// expected cardinality (channels are conversations or user/group ids).
//
// A registry is constructed at process start and handed to every component
// that needs one. There is no package-level instance.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]*Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]*Group),
	}
}

// GetOrCreate returns the group for name, creating it if absent. The first
// caller under concurrent access wins creation; every caller receives the
// same group. Used by the subscribe path, which is allowed to materialize
// channels.
func (r *Registry) GetOrCreate(name string) *Group {
	r.mu.RLock()
	group, ok := r.groups[name]
	r.mu.RUnlock()
	if ok {
		return group
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if group, ok := r.groups[name]; ok {
		return group
	}

	group = newGroup(name)
	r.groups[name] = group
	metrics.RegistryChannels.Set(float64(len(r.groups)))
	return group
}

// Get returns the group for name without creating one. Used by the queue
// bridge, which must not materialize channels for deliveries nobody has
// ever subscribed to.
func (r *Registry) Get(name string) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group, ok := r.groups[name]
	return group, ok
}

// Len returns the number of groups held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}
