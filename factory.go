package goClone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goClone/jwt"
	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/selector"
	"github.com/MrEthical07/goClone/state"
)

// Factory mints proxy instances that share one upgradable implementation.
//
// Every external invocation (proxy calls included) runs under the factory's
// execution lock, so calls are strictly sequential and run to completion.
// The implementation slot itself is read with a lock-free atomic load.
type Factory struct {
	config      Config
	address     Address
	owner       OwnerAuthorizer
	ownerTokens *jwt.Manager
	store       state.Store
	closers     []func() error
	featureSets *permission.FeatureSets

	slot atomic.Pointer[deployment]

	exec  sync.Mutex
	nonce uint64

	audit   *auditDispatcher
	metrics *Metrics
	logger  *slog.Logger
	closed  atomic.Bool
	now     func() time.Time
}

// maxNonceSkips bounds how many taken addresses one Clone steps over.
const maxNonceSkips = 64

// Address is the factory's own address; proxy addresses derive from it.
func (f *Factory) Address() Address {
	return f.address
}

// Initialize registers sels in argument order (ids 1..N) and publishes impl.
// It succeeds at most once per factory; later calls fail with
// [ErrAlreadyInitialized] and change nothing.
func (f *Factory) Initialize(ctx context.Context, impl Implementation, sels []selector.Selector) error {
	f.exec.Lock()
	defer f.exec.Unlock()

	if f.closed.Load() {
		return ErrFactoryClosed
	}
	if f.slot.Load() != nil {
		return ErrAlreadyInitialized
	}
	if err := validateImplementation(impl, sels); err != nil {
		return err
	}

	registry, err := permission.NewRegistry(f.config.Permission.MaxBits)
	if err != nil {
		return err
	}
	if _, err := registry.RegisterAll(sels); err != nil {
		return err
	}

	f.slot.Store(newDeployment(impl, registry, 1))
	f.metrics.Add(MetricEntryPointRegistered, uint64(registry.Count()))

	f.emitAudit(ctx, AuditEvent{
		EventType:      EventFactoryInitialized,
		Implementation: impl.Address().String(),
		Metadata: map[string]string{
			"entry_points": strconv.Itoa(registry.Count()),
		},
	}, nil)

	return nil
}

// Clone creates a proxy instance with zero-initialised state and a snapshot
// of mask. A proxy_created notification carries the new address.
func (f *Factory) Clone(ctx context.Context, mask permission.Mask) (*Proxy, error) {
	f.exec.Lock()
	defer f.exec.Unlock()

	if err := f.ready(); err != nil {
		return nil, err
	}
	return f.cloneLocked(ctx, mask)
}

// CloneWithFeatureSet clones with the mask of a named feature set, composed
// against the registry as it stands now.
func (f *Factory) CloneWithFeatureSet(ctx context.Context, name string) (*Proxy, error) {
	f.exec.Lock()
	defer f.exec.Unlock()

	if err := f.ready(); err != nil {
		return nil, err
	}

	mask, err := f.featureSets.Mask(name, f.slot.Load().registry)
	if err != nil {
		if errors.Is(err, permission.ErrFeatureSetNotDefined) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFeatureSet, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnknownSelector, err)
	}
	return f.cloneLocked(ctx, mask)
}

func (f *Factory) cloneLocked(ctx context.Context, mask permission.Mask) (*Proxy, error) {
	if mask == nil || !permission.ValidWidth(mask.Width()) {
		return nil, ErrInvalidMask
	}

	var (
		addr  Address
		nonce = f.nonce
	)
	for attempt := 0; ; attempt++ {
		nonce++
		addr = deriveProxyAddress(f.address, nonce)
		rec := &state.Record{
			Address:   addr.String(),
			Factory:   f.address.String(),
			Mask:      mask.Clone(),
			Nonce:     nonce,
			CreatedAt: f.now().Unix(),
			Slots:     map[string][]byte{},
		}
		err := f.store.Create(ctx, rec)
		if err == nil {
			break
		}
		// A record already at this address consumed the nonce; step past it.
		if errors.Is(err, state.ErrExists) && attempt < maxNonceSkips {
			f.nonce = nonce
			continue
		}
		return nil, storeError(err)
	}
	f.nonce = nonce

	f.metrics.Inc(MetricProxyCreated)
	f.emitAudit(ctx, AuditEvent{
		EventType: EventProxyCreated,
		Proxy:     addr.String(),
		Mask:      maskString(mask),
	}, nil)

	return &Proxy{factory: f, address: addr}, nil
}

// UpgradeImplementation publishes impl to every existing and future proxy in
// one step. Selectors already registered keep their ids; new ones are
// appended in argument order. Requires the owner capability.
func (f *Factory) UpgradeImplementation(ctx context.Context, impl Implementation, sels []selector.Selector) error {
	f.exec.Lock()
	defer f.exec.Unlock()

	if err := f.ready(); err != nil {
		return err
	}
	if err := f.authorizeOwner(ctx, OwnerOpUpgradeImplementation); err != nil {
		return err
	}
	if err := validateImplementation(impl, sels); err != nil {
		return err
	}

	current := f.slot.Load()
	next := current.registry.Clone()
	before := next.Count()
	if _, err := next.RegisterAll(sels); err != nil {
		return err
	}

	f.slot.Store(newDeployment(impl, next, current.version+1))

	added := next.Count() - before
	f.metrics.Inc(MetricImplementationUpgraded)
	f.metrics.Add(MetricEntryPointRegistered, uint64(added))
	f.emitAudit(ctx, AuditEvent{
		EventType:      EventImplementationUpgrade,
		Implementation: impl.Address().String(),
		Metadata: map[string]string{
			"previous":   current.impl.Address().String(),
			"registered": strconv.Itoa(added),
			"version":    strconv.FormatUint(current.version+1, 10),
		},
	}, nil)

	return nil
}

// UpdateFeatureSet overwrites one instance's mask. Bits for ids that are not
// registered are accepted and stay inert. Requires the owner capability.
func (f *Factory) UpdateFeatureSet(ctx context.Context, proxy Address, mask permission.Mask) error {
	f.exec.Lock()
	defer f.exec.Unlock()

	if f.closed.Load() {
		return ErrFactoryClosed
	}
	if err := f.authorizeOwner(ctx, OwnerOpUpdateFeatureSet); err != nil {
		return err
	}
	if mask == nil || !permission.ValidWidth(mask.Width()) {
		return ErrInvalidMask
	}
	if _, err := f.loadOwned(ctx, proxy); err != nil {
		return err
	}
	if err := f.store.SetMask(ctx, proxy.String(), mask.Clone()); err != nil {
		return storeError(err)
	}

	f.metrics.Inc(MetricFeatureSetUpdated)
	f.emitAudit(ctx, AuditEvent{
		EventType: EventFeatureSetUpdated,
		Proxy:     proxy.String(),
		Mask:      maskString(mask),
	}, nil)

	return nil
}

// GetFuncID returns the registry id of sel, or 0 if it is not registered.
func (f *Factory) GetFuncID(sel selector.Selector) uint32 {
	d := f.slot.Load()
	if d == nil {
		return 0
	}
	id, _ := d.registry.Lookup(sel)
	return id
}

// GetImplementation returns the implementation every proxy currently
// delegates to, or nil before Initialize.
func (f *Factory) GetImplementation() Implementation {
	d := f.slot.Load()
	if d == nil {
		return nil
	}
	return d.impl
}

// EntryPoints lists registered selectors in id order.
func (f *Factory) EntryPoints() []selector.Selector {
	d := f.slot.Load()
	if d == nil {
		return nil
	}
	return d.registry.Selectors()
}

// Version counts published implementations: 1 after Initialize, +1 per
// upgrade, 0 before Initialize.
func (f *Factory) Version() uint64 {
	d := f.slot.Load()
	if d == nil {
		return 0
	}
	return d.version
}

// MaskBits is the configured feature mask width.
func (f *Factory) MaskBits() int {
	return f.config.Permission.MaxBits
}

// FeatureSetNames lists named feature sets configured on the builder.
func (f *Factory) FeatureSetNames() []string {
	return f.featureSets.Names()
}

// Proxy returns a handle to an existing instance cloned by this factory.
func (f *Factory) Proxy(ctx context.Context, addr Address) (*Proxy, error) {
	f.exec.Lock()
	defer f.exec.Unlock()

	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	if _, err := f.loadOwned(ctx, addr); err != nil {
		return nil, err
	}
	return &Proxy{factory: f, address: addr}, nil
}

// Proxies lists the addresses of every instance this factory has cloned.
func (f *Factory) Proxies(ctx context.Context) ([]Address, error) {
	f.exec.Lock()
	defer f.exec.Unlock()

	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}

	addrs, err := f.store.Addresses(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	out := make([]Address, 0, len(addrs))
	for _, text := range addrs {
		addr, err := ParseAddress(text)
		if err != nil {
			continue
		}
		rec, err := f.store.Load(ctx, text)
		if err != nil {
			return nil, storeError(err)
		}
		if rec.Factory == f.address.String() {
			out = append(out, addr)
		}
	}
	return out, nil
}

// OwnerOpen reports whether every caller is treated as the owner, which is
// the case unless the owner capability or a custom authorizer is configured.
func (f *Factory) OwnerOpen() bool {
	_, ok := f.owner.(AllowAllOwners)
	return ok
}

// IssueOwnerToken signs an owner capability token for this factory. Only
// available when the owner capability is enabled with a signing key.
func (f *Factory) IssueOwnerToken(subject string, scopes ...string) (string, error) {
	if f.ownerTokens == nil {
		return "", errors.New("owner tokens not configured")
	}
	return f.ownerTokens.CreateOwner(subject, f.address.String(), scopes...)
}

// Close stops notification delivery and releases stores opened by the
// builder. Further operations fail with [ErrFactoryClosed].
func (f *Factory) Close() error {
	if f == nil || !f.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Waits for any in-flight call to finish.
	f.exec.Lock()
	defer f.exec.Unlock()

	if f.audit != nil {
		f.audit.Close()
	}

	var errs []error
	for _, c := range f.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AuditDropped reports notifications dropped under backpressure.
func (f *Factory) AuditDropped() uint64 {
	if f == nil || f.audit == nil {
		return 0
	}
	return f.audit.Dropped()
}

// MetricsSnapshot returns a copy of the factory's counters.
func (f *Factory) MetricsSnapshot() MetricsSnapshot {
	if f == nil || f.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return f.metrics.Snapshot()
}

func (f *Factory) ready() error {
	if f.closed.Load() {
		return ErrFactoryClosed
	}
	if f.slot.Load() == nil {
		return ErrNotInitialized
	}
	return nil
}

func (f *Factory) authorizeOwner(ctx context.Context, op string) error {
	err := f.owner.AuthorizeOwner(ctx, f.address, op)
	if err == nil {
		return nil
	}

	err = fmt.Errorf("%w: %v", ErrOwnerUnauthorized, err)
	f.metrics.Inc(MetricOwnerRejected)
	f.emitAudit(ctx, AuditEvent{
		EventType: EventOwnerRejected,
		Metadata:  map[string]string{"operation": op},
	}, err)
	return err
}

// loadOwned loads addr and checks it was cloned by this factory.
func (f *Factory) loadOwned(ctx context.Context, addr Address) (*state.Record, error) {
	rec, err := f.store.Load(ctx, addr.String())
	if err != nil {
		return nil, storeError(err)
	}
	if rec.Factory != f.address.String() {
		return nil, fmt.Errorf("%w: %s belongs to another factory", ErrProxyNotFound, addr)
	}
	return rec, nil
}

// restoreNonce resumes address derivation after a restart against a
// persistent store.
func (f *Factory) restoreNonce(ctx context.Context) error {
	addrs, err := f.store.Addresses(ctx)
	if err != nil {
		return storeError(err)
	}
	for _, addr := range addrs {
		rec, err := f.store.Load(ctx, addr)
		if err != nil {
			return storeError(err)
		}
		if rec.Factory == f.address.String() && rec.Nonce > f.nonce {
			f.nonce = rec.Nonce
		}
	}
	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, state.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrProxyNotFound, err)
	case errors.Is(err, state.ErrUnavailable),
		errors.Is(err, state.ErrConflict),
		errors.Is(err, state.ErrCorrupt),
		errors.Is(err, state.ErrExists):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	default:
		return err
	}
}
