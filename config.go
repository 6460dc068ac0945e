package goClone

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete factory configuration. Use [DefaultConfig] as a
// starting point; [Builder.Build] validates it.
type Config struct {
	Permission PermissionConfig
	State      StateConfig
	Owner      OwnerConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Notify     NotifyConfig
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig fixes the feature mask width, and with it the maximum
// number of entry points the registry can ever hold.
type PermissionConfig struct {
	MaxBits int // 64, 128, 256 or 512
}

/*
====================================
STATE CONFIG
====================================
*/

// Instance store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// StateConfig selects where proxy instance records live.
type StateConfig struct {
	Backend     string
	RedisPrefix string
	SQLitePath  string
}

/*
====================================
OWNER CONFIG
====================================
*/

// OwnerConfig controls the owner capability consulted by
// UpgradeImplementation and UpdateFeatureSet. When disabled every caller is
// treated as the owner.
type OwnerConfig struct {
	Enabled       bool
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	KeyID         string
	TokenTTL      time.Duration
}

/*
====================================
AUDIT / METRICS / NOTIFY
====================================
*/

// AuditConfig configures asynchronous factory notifications.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// NotifyConfig names the NATS subject notifications are published to when a
// NATS sink is attached.
type NotifyConfig struct {
	NATSSubject string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Permission: PermissionConfig{
			MaxBits: 256,
		},
		State: StateConfig{
			Backend:     BackendMemory,
			RedisPrefix: "gc",
			SQLitePath:  "goclone.db",
		},
		Owner: OwnerConfig{
			Enabled:       false,
			SigningMethod: "ed25519",
			Issuer:        "goclone",
			TokenTTL:      15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Notify: NotifyConfig{
			NATSSubject: "goclone.events",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Owner.PrivateKey = cloneBytes(cfg.Owner.PrivateKey)
	out.Owner.PublicKey = cloneBytes(cfg.Owner.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks c for internal consistency. It does not touch any backend.
func (c *Config) Validate() error {
	// Permission
	switch c.Permission.MaxBits {
	case 64, 128, 256, 512:
		// valid
	default:
		return errors.New("Permission MaxBits must be 64, 128, 256, or 512")
	}

	// State
	switch c.State.Backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.State.RedisPrefix) == "" {
			return errors.New("State RedisPrefix must be set for the redis backend")
		}
		if strings.ContainsAny(c.State.RedisPrefix, "{}") {
			return errors.New("State RedisPrefix must not contain hash tag braces")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.State.SQLitePath) == "" {
			return errors.New("State SQLitePath must be set for the sqlite backend")
		}
	default:
		return errors.New("State Backend must be memory, redis, or sqlite")
	}

	// Owner
	if c.Owner.Enabled {
		if c.Owner.TokenTTL <= 0 {
			return errors.New("Owner TokenTTL must be > 0")
		}
		switch c.Owner.SigningMethod {
		case "ed25519":
			if len(c.Owner.PublicKey) == 0 {
				return errors.New("ed25519 requires PublicKey")
			}
		case "hs256":
			if len(c.Owner.PrivateKey) < 32 {
				return errors.New("hs256 requires a PrivateKey of at least 256 bits")
			}
		default:
			return errors.New("unsupported Owner signing method")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0")
		}
		if c.Audit.BufferSize > 1<<20 {
			return errors.New("Audit BufferSize is too large")
		}
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
