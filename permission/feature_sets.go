package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrEthical07/goClone/selector"
)

// ErrFeatureSetNotDefined is returned by [FeatureSets.Mask] for unknown names.
var ErrFeatureSetNotDefined = errors.New("feature set not defined")

// FeatureSets holds named selector lists that are turned into masks on
// demand. Resolution happens against whichever registry the caller passes, so
// a feature set defined before an upgrade can name entry points that only
// exist afterwards.
type FeatureSets struct {
	mu     sync.RWMutex
	sets   map[string][]selector.Selector
	frozen bool
}

// NewFeatureSets returns an empty collection.
func NewFeatureSets() *FeatureSets {
	return &FeatureSets{
		sets: make(map[string][]selector.Selector),
	}
}

// Define stores a named feature set.
func (fs *FeatureSets) Define(name string, sels []selector.Selector) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.frozen {
		return errors.New("feature sets frozen")
	}

	if name == "" {
		return errors.New("feature set name empty")
	}

	if _, exists := fs.sets[name]; exists {
		return errors.New("feature set already defined")
	}

	cp := make([]selector.Selector, len(sels))
	copy(cp, sels)
	fs.sets[name] = cp
	return nil
}

// Mask composes the mask for the named set against reg. Every selector in
// the set must be registered.
func (fs *FeatureSets) Mask(name string, reg *Registry) (Mask, error) {
	fs.mu.RLock()
	sels, ok := fs.sets[name]
	fs.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeatureSetNotDefined, name)
	}

	return Compose(reg, sels...)
}

// Count returns the number of defined sets.
func (fs *FeatureSets) Count() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.sets)
}

// Names lists defined set names in lexical order.
func (fs *FeatureSets) Names() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]string, 0, len(fs.sets))
	for name := range fs.sets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further definitions.
func (fs *FeatureSets) Freeze() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frozen = true
}

// Compose builds a mask of reg's width granting exactly sels.
func Compose(reg *Registry, sels ...selector.Selector) (Mask, error) {
	if reg == nil {
		return nil, errors.New("nil registry")
	}

	mask, err := NewMask(reg.MaxBits())
	if err != nil {
		return nil, err
	}

	for _, sel := range sels {
		id, ok := reg.Lookup(sel)
		if !ok {
			return nil, errors.New("entry point not registered: " + sel.String())
		}
		Grant(mask, id)
	}
	return mask, nil
}
