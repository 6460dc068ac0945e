package goClone

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goClone/selector"
	"github.com/MrEthical07/goClone/state"
)

// Handler serves one entry point. st is the calling instance's own state,
// buffered for the duration of the call: writes become visible to later calls
// only if the handler returns a nil error.
type Handler func(ctx context.Context, st state.State, args []byte) ([]byte, error)

// Implementation is the shared logic every proxy delegates to. It holds no
// per-instance state of its own.
type Implementation interface {
	Address() Address
	Handler(sel selector.Selector) (Handler, bool)
}

// Entry binds a canonical signature to its handler.
type Entry struct {
	Signature string
	Selector  selector.Selector
	Fn        Handler
}

// Func builds an [Entry] whose selector is derived from signature.
func Func(signature string, fn Handler) Entry {
	return Entry{
		Signature: signature,
		Selector:  selector.FromSignature(signature),
		Fn:        fn,
	}
}

// Contract is a static [Implementation] assembled from entries.
type Contract struct {
	name    string
	address Address
	entries []Entry
	bySel   map[selector.Selector]Handler
}

// NewContract builds a Contract. Entries keep their declaration order, which
// is the order [Selectors] reports. Duplicate selectors and nil handlers are
// rejected.
func NewContract(name string, entries ...Entry) (*Contract, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entry points", ErrInvalidImplementation)
	}

	c := &Contract{
		name:    name,
		entries: make([]Entry, 0, len(entries)),
		bySel:   make(map[selector.Selector]Handler, len(entries)),
	}

	seed := [][]byte{[]byte("goclone/impl"), []byte(name)}
	for _, e := range entries {
		if e.Fn == nil {
			return nil, fmt.Errorf("%w: nil handler for %s", ErrInvalidImplementation, e.Signature)
		}
		if e.Selector.IsZero() {
			return nil, fmt.Errorf("%w: zero selector for %q", ErrInvalidImplementation, e.Signature)
		}
		if _, dup := c.bySel[e.Selector]; dup {
			return nil, fmt.Errorf("%w: duplicate selector %s", ErrInvalidImplementation, e.Selector)
		}
		c.bySel[e.Selector] = e.Fn
		c.entries = append(c.entries, e)
		sel := e.Selector
		seed = append(seed, sel[:])
	}
	c.address = addressFromHash(selector.Keccak256(seed...))

	return c, nil
}

// MustContract is like [NewContract] but panics on error.
func MustContract(name string, entries ...Entry) *Contract {
	c, err := NewContract(name, entries...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Contract) Name() string { return c.name }

func (c *Contract) Address() Address { return c.address }

func (c *Contract) Handler(sel selector.Selector) (Handler, bool) {
	h, ok := c.bySel[sel]
	return h, ok
}

// Selectors lists entry point selectors in declaration order.
func (c *Contract) Selectors() []selector.Selector {
	out := make([]selector.Selector, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Selector
	}
	return out
}

// Signatures lists entry point signatures in declaration order.
func (c *Contract) Signatures() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Signature
	}
	return out
}

type selectorLister interface {
	Selectors() []selector.Selector
}

// Selectors returns every selector impl declares, in declaration order, or nil
// when impl does not enumerate its entry points.
func Selectors(impl Implementation) []selector.Selector {
	if l, ok := impl.(selectorLister); ok {
		return l.Selectors()
	}
	return nil
}

func validateImplementation(impl Implementation, sels []selector.Selector) error {
	if impl == nil {
		return fmt.Errorf("%w: nil implementation", ErrInvalidImplementation)
	}
	if impl.Address().IsZero() {
		return fmt.Errorf("%w: zero address", ErrInvalidImplementation)
	}
	if len(sels) == 0 {
		return fmt.Errorf("%w: no selectors", ErrInvalidImplementation)
	}
	for _, sel := range sels {
		if _, ok := impl.Handler(sel); !ok {
			return fmt.Errorf("%w: %s not served", ErrInvalidImplementation, sel)
		}
	}
	return nil
}

// ResolveSelector accepts either a hex selector ("0xa9059cbb") or a canonical
// signature ("func12()").
func ResolveSelector(text string) (selector.Selector, error) {
	if sel, err := selector.Parse(text); err == nil {
		return sel, nil
	}
	if text == "" {
		return selector.Selector{}, errors.New("empty signature")
	}
	return selector.FromSignature(text), nil
}
