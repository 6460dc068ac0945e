package goClone

import (
	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/selector"
)

// deployment is the published content of the implementation slot. It is
// immutable once stored; upgrades build a fresh one and swap the pointer.
type deployment struct {
	impl     Implementation
	registry *permission.Registry
	// table[id] is the handler for entry point id; index 0 is unused. A nil
	// entry marks an id registered by an earlier implementation that the
	// current one does not serve.
	table   []Handler
	version uint64
}

func newDeployment(impl Implementation, registry *permission.Registry, version uint64) *deployment {
	registry.Freeze()

	sels := registry.Selectors()
	table := make([]Handler, len(sels)+1)
	for i, sel := range sels {
		if h, ok := impl.Handler(sel); ok {
			table[i+1] = h
		}
	}

	return &deployment{
		impl:     impl,
		registry: registry,
		table:    table,
		version:  version,
	}
}

// resolve maps a selector to its id and current handler.
func (d *deployment) resolve(sel selector.Selector) (uint32, Handler, bool) {
	id, ok := d.registry.Lookup(sel)
	if !ok {
		return 0, nil, false
	}
	if int(id) >= len(d.table) {
		return id, nil, true
	}
	return id, d.table[id], true
}
