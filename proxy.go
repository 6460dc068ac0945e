package goClone

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/selector"
	"github.com/MrEthical07/goClone/state"
)

// Proxy is a handle to one instance. It holds no implementation of its own:
// every call consults the factory's implementation slot, so upgrades apply
// to existing proxies immediately.
type Proxy struct {
	factory *Factory
	address Address
}

// Address returns the instance address.
func (p *Proxy) Address() Address {
	return p.address
}

// Factory returns the factory that cloned p.
func (p *Proxy) Factory() *Factory {
	return p.factory
}

// Call dispatches one invocation of entry point sel:
//
//  1. sel is resolved through the registry; unknown selectors fail with
//     [ErrUnknownSelector].
//  2. The instance's mask must grant the entry point's id; otherwise the call
//     fails with [ErrNoPermission] and nothing is forwarded or written.
//  3. The current implementation's handler runs against a buffered view of
//     this instance's state.
//  4. On success the buffered writes commit in one store operation and the
//     handler's output is returned unchanged. On failure the writes are
//     discarded and the error is returned as a [*ForwardingError].
func (p *Proxy) Call(ctx context.Context, sel selector.Selector, args []byte) ([]byte, error) {
	f := p.factory
	start := time.Now()
	defer func() {
		f.metrics.Observe(MetricCallLatency, time.Since(start))
	}()

	f.exec.Lock()
	defer f.exec.Unlock()

	if err := f.ready(); err != nil {
		return nil, err
	}
	d := f.slot.Load()

	id, handler, ok := d.resolve(sel)
	if !ok {
		f.metrics.Inc(MetricCallUnknownSelector)
		return nil, fmt.Errorf("%w: %s", ErrUnknownSelector, sel)
	}

	rec, err := f.loadOwned(ctx, p.address)
	if err != nil {
		f.metrics.Inc(MetricCallStoreError)
		return nil, err
	}

	if !permission.Permits(rec.Mask, id) {
		f.metrics.Inc(MetricCallDenied)
		f.emitAudit(ctx, AuditEvent{
			EventType: EventCallDenied,
			Proxy:     p.address.String(),
			Selector:  sel.String(),
			EntryID:   id,
			Mask:      maskString(rec.Mask),
		}, ErrNoPermission)
		return nil, ErrNoPermission
	}

	if handler == nil {
		return nil, p.failed(ctx, d, sel, id, errEntryPointNotImplemented)
	}

	tx := state.NewTx(rec.Slots)
	out, err := invoke(ctx, handler, tx, args)
	if err != nil {
		tx.Discard()
		return nil, p.failed(ctx, d, sel, id, err)
	}

	if changes := tx.Changes(); !changes.Empty() {
		if err := f.store.Commit(ctx, p.address.String(), changes); err != nil {
			f.metrics.Inc(MetricCallStoreError)
			return nil, storeError(err)
		}
	}

	f.metrics.Inc(MetricCallSuccess)
	return out, nil
}

// CallSignature is Call with the selector derived from a canonical
// signature such as "func12()".
func (p *Proxy) CallSignature(ctx context.Context, signature string, args []byte) ([]byte, error) {
	return p.Call(ctx, selector.FromSignature(signature), args)
}

// FeatureMask returns a copy of the instance's current mask.
func (p *Proxy) FeatureMask(ctx context.Context) (permission.Mask, error) {
	f := p.factory
	f.exec.Lock()
	defer f.exec.Unlock()

	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	rec, err := f.loadOwned(ctx, p.address)
	if err != nil {
		return nil, err
	}
	return rec.Mask, nil
}

// Permits reports whether the instance may currently call sel. Unknown
// selectors are never permitted.
func (p *Proxy) Permits(ctx context.Context, sel selector.Selector) (bool, error) {
	id := p.factory.GetFuncID(sel)
	if id == 0 {
		return false, nil
	}
	mask, err := p.FeatureMask(ctx)
	if err != nil {
		return false, err
	}
	return permission.Permits(mask, id), nil
}

func (p *Proxy) failed(ctx context.Context, d *deployment, sel selector.Selector, id uint32, cause error) error {
	f := p.factory
	fe := &ForwardingError{Selector: sel, Err: cause}

	f.metrics.Inc(MetricCallFailed)
	f.emitAudit(ctx, AuditEvent{
		EventType:      EventCallFailed,
		Proxy:          p.address.String(),
		Implementation: d.impl.Address().String(),
		Selector:       sel.String(),
		EntryID:        id,
		Metadata:       map[string]string{"cause": cause.Error()},
	}, fe)
	return fe
}

// invoke runs h, turning a panic into an error so the execution lock is
// always released and the buffered writes are discarded.
func invoke(ctx context.Context, h Handler, st state.State, args []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("implementation panicked: %v", r)
		}
	}()
	return h(ctx, st, args)
}
