package permission

import (
	"errors"
	"sync"

	"github.com/MrEthical07/goClone/selector"
)

var (
	// ErrRegistryFull is returned when registering would assign an id beyond
	// the registry's mask width.
	ErrRegistryFull = errors.New("entry point limit exceeded")
	// ErrRegistryFrozen is returned when registering on a published registry.
	ErrRegistryFrozen = errors.New("registry frozen")
	// ErrZeroSelector is returned when registering the all-zero selector.
	ErrZeroSelector = errors.New("selector cannot be zero")
)

// Registry maps entry point selectors to stable ids. Ids start at 1, are
// dense, and follow registration order; id n is governed by mask bit n-1.
type Registry struct {
	maxBits int

	mu      sync.RWMutex
	selToID map[selector.Selector]uint32
	idToSel []selector.Selector
	frozen  bool
}

// NewRegistry creates an empty [Registry] whose ids must fit a mask of
// maxBits (64/128/256/512).
func NewRegistry(maxBits int) (*Registry, error) {
	if !ValidWidth(maxBits) {
		return nil, ErrInvalidWidth
	}

	return &Registry{
		maxBits: maxBits,
		selToID: make(map[selector.Selector]uint32),
	}, nil
}

// Register returns the id of sel, assigning the next id if sel is new.
// Registering a known selector is a no-op that returns its existing id.
func (r *Registry) Register(sel selector.Selector) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.registerLocked(sel)
}

// RegisterAll registers sels in order and returns their ids. Either every
// selector is registered or, on error, none is.
func (r *Registry) RegisterAll(sels []selector.Selector) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil, ErrRegistryFrozen
	}

	fresh := make(map[selector.Selector]struct{}, len(sels))
	for _, sel := range sels {
		if sel.IsZero() {
			return nil, ErrZeroSelector
		}
		if _, known := r.selToID[sel]; !known {
			fresh[sel] = struct{}{}
		}
	}
	if len(r.idToSel)+len(fresh) > r.maxBits {
		return nil, ErrRegistryFull
	}

	ids := make([]uint32, len(sels))
	for i, sel := range sels {
		id, err := r.registerLocked(sel)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (r *Registry) registerLocked(sel selector.Selector) (uint32, error) {
	if r.frozen {
		return 0, ErrRegistryFrozen
	}

	if sel.IsZero() {
		return 0, ErrZeroSelector
	}

	if id, exists := r.selToID[sel]; exists {
		return id, nil
	}

	if len(r.idToSel) >= r.maxBits {
		return 0, ErrRegistryFull
	}

	r.idToSel = append(r.idToSel, sel)
	id := uint32(len(r.idToSel))
	r.selToID[sel] = id

	return id, nil
}

// Lookup returns the id of sel, or (0, false) if it was never registered.
func (r *Registry) Lookup(sel selector.Selector) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.selToID[sel]
	return id, ok
}

// Selector returns the selector registered under id, or false if unassigned.
func (r *Registry) Selector(id uint32) (selector.Selector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.idToSel) {
		return selector.Selector{}, false
	}
	return r.idToSel[id-1], true
}

// Selectors returns every registered selector in id order.
func (r *Registry) Selectors() []selector.Selector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]selector.Selector, len(r.idToSel))
	copy(out, r.idToSel)
	return out
}

// Count returns the number of registered selectors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.idToSel)
}

// NextID returns the id the next new selector would receive.
func (r *Registry) NextID() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint32(len(r.idToSel)) + 1
}

// MaxBits returns the mask width the registry was built for.
func (r *Registry) MaxBits() int {
	return r.maxBits
}

// Freeze prevents further registrations. Published registries are frozen;
// upgrades work on a [Registry.Clone].
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether [Registry.Freeze] has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Clone returns an unfrozen copy with identical ids.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Registry{
		maxBits: r.maxBits,
		selToID: make(map[selector.Selector]uint32, len(r.selToID)),
		idToSel: make([]selector.Selector, len(r.idToSel)),
	}
	copy(out.idToSel, r.idToSel)
	for sel, id := range r.selToID {
		out.selToID[sel] = id
	}
	return out
}
