package state

import "sort"

// Tx buffers writes over a committed slot snapshot. It satisfies [State].
// A Tx is used by one call and is not safe for concurrent use.
type Tx struct {
	base    map[string][]byte
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewTx starts a buffer over base. base is never modified.
func NewTx(base map[string][]byte) *Tx {
	return &Tx{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Get returns the buffered value of key, falling back to the snapshot.
func (t *Tx) Get(key string) ([]byte, bool) {
	if v, ok := t.writes[key]; ok {
		return cloneBytes(v), true
	}
	if _, ok := t.deletes[key]; ok {
		return nil, false
	}
	v, ok := t.base[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(v), true
}

// Set buffers a write.
func (t *Tx) Set(key string, value []byte) {
	delete(t.deletes, key)
	if value == nil {
		value = []byte{}
	}
	t.writes[key] = cloneBytes(value)
}

// Delete buffers a removal.
func (t *Tx) Delete(key string) {
	delete(t.writes, key)
	if _, ok := t.base[key]; ok {
		t.deletes[key] = struct{}{}
	}
}

// Changes returns the buffered write set. Deletes are sorted for
// deterministic application.
func (t *Tx) Changes() Changes {
	c := Changes{}
	if len(t.writes) > 0 {
		c.Writes = make(map[string][]byte, len(t.writes))
		for k, v := range t.writes {
			c.Writes[k] = cloneBytes(v)
		}
	}
	if len(t.deletes) > 0 {
		c.Deletes = make([]string, 0, len(t.deletes))
		for k := range t.deletes {
			c.Deletes = append(c.Deletes, k)
		}
		sort.Strings(c.Deletes)
	}
	return c
}

// Discard drops every buffered change.
func (t *Tx) Discard() {
	t.writes = make(map[string][]byte)
	t.deletes = make(map[string]struct{})
}

// Apply folds c into slots in place.
func Apply(slots map[string][]byte, c Changes) {
	for _, k := range c.Deletes {
		delete(slots, k)
	}
	for k, v := range c.Writes {
		slots[k] = cloneBytes(v)
	}
}
