package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morezero/browser-bridge/pkg/engine"
)

const logPrefix = "registry:registry"

// Registry maps ids to handles for one session. It is safe for concurrent use.
//
// Engine objects stored in the registry must be comparable (bindings hand out pointers), since
// re-inserting an already registered object is detected by identity.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Insert registers h under h.ID. Inserting the object already registered under that id is a
// no-op; inserting a different object under a taken id fails with ErrIDTaken.
func (r *Registry) Insert(h Handle) error {
	if h.ID == "" || h.Type == "" || h.Object == nil {
		return fmt.Errorf("%s - %w: id=%q type=%q", logPrefix, ErrInvalidHandle, h.ID, h.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.handles[h.ID]; ok {
		if existing.Object == h.Object {
			return nil
		}
		return fmt.Errorf("%s - %w: %s", logPrefix, ErrIDTaken, h.ID)
	}
	h.Parent = ""
	r.handles[h.ID] = h
	slog.Debug(fmt.Sprintf("%s - Registered %s (%s)", logPrefix, h.ID, h.Type))
	return nil
}

// Lookup returns the handle registered under id.
func (r *Registry) Lookup(id string) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h, nil
}

// ResolveFacet follows the facetType relation off the object registered under id. The
// returned handle carries the parent id; the facet is not registered on its own.
func (r *Registry) ResolveFacet(id, facetType string) (Handle, error) {
	parent, err := r.Lookup(id)
	if err != nil {
		return Handle{}, err
	}
	faceted, ok := parent.Object.(engine.Faceted)
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s has no %s", ErrNoFacet, id, facetType)
	}
	facet, ok := faceted.Facet(facetType)
	if !ok || facet == nil {
		return Handle{}, fmt.Errorf("%w: %s has no %s", ErrNoFacet, id, facetType)
	}
	return Handle{ID: id, Type: facetType, Object: facet, Parent: id}, nil
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Handles returns all registered handles ordered by id.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reset discards every entry. Used at session teardown.
func (r *Registry) Reset() {
	r.mu.Lock()
	n := len(r.handles)
	r.handles = make(map[string]Handle)
	r.mu.Unlock()
	slog.Info(fmt.Sprintf("%s - Registry reset (%d objects discarded)", logPrefix, n))
}
