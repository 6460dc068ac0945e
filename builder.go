package goClone

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/selector"
	"github.com/MrEthical07/goClone/state"
	"github.com/MrEthical07/goClone/state/sqlite"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Factory]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  state.Store

	address   Address
	impl      Implementation
	selectors []selector.Selector

	featureSets map[string][]selector.Selector

	auditSink AuditSink
	owner     OwnerAuthorizer
	logger    *slog.Logger

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client for the redis state backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore overrides the configured backend with an explicit store.
func (b *Builder) WithStore(store state.Store) *Builder {
	b.store = store
	return b
}

// WithAddress fixes the factory address. Reusing an address against a
// persistent store resumes proxy address derivation where it left off.
func (b *Builder) WithAddress(addr Address) *Builder {
	b.address = addr
	return b
}

// WithImplementation makes Build initialize the factory with impl. When no
// selectors are given, every selector impl declares is registered in
// declaration order.
func (b *Builder) WithImplementation(impl Implementation, sels ...selector.Selector) *Builder {
	b.impl = impl
	b.selectors = append([]selector.Selector(nil), sels...)
	return b
}

// WithFeatureSets defines named selector lists for CloneWithFeatureSet.
func (b *Builder) WithFeatureSets(sets map[string][]selector.Selector) *Builder {
	b.featureSets = sets
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithOwnerAuthorizer overrides the owner capability check.
func (b *Builder) WithOwnerAuthorizer(owner OwnerAuthorizer) *Builder {
	b.owner = owner
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build is BuildContext with a background context.
func (b *Builder) Build() (*Factory, error) {
	return b.BuildContext(context.Background())
}

// BuildContext validates the configuration, opens the instance store and,
// if an implementation was supplied, initializes the factory with it.
func (b *Builder) BuildContext(ctx context.Context) (*Factory, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = discardLogger()
	}

	// -------- FEATURE SETS --------
	featureSets := permission.NewFeatureSets()
	names := make([]string, 0, len(b.featureSets))
	for name := range b.featureSets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := featureSets.Define(name, b.featureSets[name]); err != nil {
			return nil, err
		}
	}
	featureSets.Freeze()

	f := &Factory{
		config:      cfg,
		address:     b.address,
		featureSets: featureSets,
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger,
		now:         time.Now,
	}
	if f.address.IsZero() {
		f.address = NewFactoryAddress()
	}

	// -------- OWNER CAPABILITY --------
	switch {
	case b.owner != nil:
		f.owner = b.owner
	case cfg.Owner.Enabled:
		tokens, err := newOwnerTokenManager(cfg.Owner)
		if err != nil {
			return nil, err
		}
		f.ownerTokens = tokens
		f.owner = NewJWTOwnerAuthorizer(tokens)
	default:
		f.owner = AllowAllOwners{}
	}
	if f.ownerTokens == nil && cfg.Owner.Enabled && len(cfg.Owner.PrivateKey) > 0 {
		tokens, err := newOwnerTokenManager(cfg.Owner)
		if err != nil {
			return nil, err
		}
		f.ownerTokens = tokens
	}

	// -------- INSTANCE STORE --------
	store, closers, err := b.openStore(cfg)
	if err != nil {
		return nil, err
	}
	f.store = store
	f.closers = closers

	if !b.address.IsZero() {
		if err := f.restoreNonce(ctx); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	f.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	if b.impl != nil {
		sels := b.selectors
		if len(sels) == 0 {
			sels = Selectors(b.impl)
		}
		if err := f.Initialize(ctx, b.impl, sels); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	b.built = true
	logger.Debug("factory built",
		"factory", f.address.String(),
		"backend", cfg.State.Backend,
		"mask_bits", cfg.Permission.MaxBits,
	)

	return f, nil
}

func (b *Builder) openStore(cfg Config) (state.Store, []func() error, error) {
	if b.store != nil {
		return b.store, nil, nil
	}

	switch cfg.State.Backend {
	case BackendRedis:
		if b.redis == nil {
			return nil, nil, errors.New("redis backend requires redis client")
		}
		return state.NewRedisStore(b.redis, cfg.State.RedisPrefix), nil, nil
	case BackendSQLite:
		store, err := sqlite.NewStore(cfg.State.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, []func() error{store.Close}, nil
	default:
		if b.redis != nil {
			return nil, nil, errors.New("redis client supplied but State Backend is memory")
		}
		return state.NewMemoryStore(), nil, nil
	}
}
