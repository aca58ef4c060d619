package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps destination names to descriptors. It is populated at
// startup and read concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Destination
}

// NewRegistry returns a registry holding dests.
func NewRegistry(dests ...*Destination) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Destination, len(dests))}
	for _, d := range dests {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds d. Registering the same name twice is an error; a
// destination is never replaced once registered.
func (r *Registry) Register(d *Destination) error {
	if d == nil {
		return fmt.Errorf("schema: cannot register nil destination")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName == nil {
		r.byName = make(map[string]*Destination)
	}
	if _, ok := r.byName[d.name]; ok {
		return fmt.Errorf("schema: destination %q already registered", d.name)
	}
	r.byName[d.name] = d
	return nil
}

// Lookup returns the destination registered under name.
func (r *Registry) Lookup(name string) (*Destination, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered destinations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
