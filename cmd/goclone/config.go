package main

import (
	"fmt"
	"os"
	"time"

	goClone "github.com/MrEthical07/goClone"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML layout read by --config.
type FileConfig struct {
	Permission PermissionFileConfig `yaml:"permission"`
	State      StateFileConfig      `yaml:"state"`
	Owner      OwnerFileConfig      `yaml:"owner"`
	Audit      AuditFileConfig      `yaml:"audit"`
	Metrics    MetricsFileConfig    `yaml:"metrics"`
	Notify     NotifyFileConfig     `yaml:"notify"`
	HTTP       HTTPFileConfig       `yaml:"http"`
}

type PermissionFileConfig struct {
	MaxBits int `yaml:"max_bits"`
}

// StateFileConfig selects the instance store. With backend redis and no
// redis_addr, an in-process miniredis is started.
type StateFileConfig struct {
	Backend     string `yaml:"backend"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type OwnerFileConfig struct {
	Enabled        bool          `yaml:"enabled"`
	SigningMethod  string        `yaml:"signing_method"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	Secret         string        `yaml:"secret"`
	Issuer         string        `yaml:"issuer"`
	KeyID          string        `yaml:"key_id"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

type AuditFileConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
	// JSONLog writes every notification to stderr as a JSON line.
	JSONLog bool `yaml:"json_log"`
}

type MetricsFileConfig struct {
	Enabled           bool `yaml:"enabled"`
	LatencyHistograms bool `yaml:"latency_histograms"`
}

// NotifyFileConfig enables the NATS sink when URL is set.
type NotifyFileConfig struct {
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

// HTTPFileConfig configures serve. The owner throttle is active on the redis
// backend only.
type HTTPFileConfig struct {
	Addr               string        `yaml:"addr"`
	OwnerMaxFailures   int           `yaml:"owner_max_failures"`
	OwnerFailureWindow time.Duration `yaml:"owner_failure_window"`
}

// DefaultFileConfig mirrors goClone.DefaultConfig, with the redis backend on
// miniredis so the CLI exercises the redis store out of the box.
func DefaultFileConfig() *FileConfig {
	d := goClone.DefaultConfig()
	return &FileConfig{
		Permission: PermissionFileConfig{MaxBits: d.Permission.MaxBits},
		State: StateFileConfig{
			Backend:     goClone.BackendRedis,
			RedisPrefix: d.State.RedisPrefix,
		},
		Owner: OwnerFileConfig{
			SigningMethod: d.Owner.SigningMethod,
			TokenTTL:      d.Owner.TokenTTL,
		},
		Audit: AuditFileConfig{
			BufferSize: d.Audit.BufferSize,
			DropIfFull: d.Audit.DropIfFull,
		},
		Notify: NotifyFileConfig{NATSSubject: d.Notify.NATSSubject},
		HTTP: HTTPFileConfig{
			Addr:               ":8080",
			OwnerMaxFailures:   5,
			OwnerFailureWindow: time.Minute,
		},
	}
}

// LoadFileConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadFileConfig(path string) (*FileConfig, error) {
	cfg := DefaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// FactoryConfig converts the file layout to a validated goClone.Config,
// reading key material from disk.
func (c *FileConfig) FactoryConfig() (goClone.Config, error) {
	cfg := goClone.DefaultConfig()
	cfg.Permission.MaxBits = c.Permission.MaxBits

	cfg.State.Backend = c.State.Backend
	cfg.State.RedisPrefix = c.State.RedisPrefix
	cfg.State.SQLitePath = c.State.SQLitePath

	cfg.Owner.Enabled = c.Owner.Enabled
	cfg.Owner.SigningMethod = c.Owner.SigningMethod
	cfg.Owner.Issuer = c.Owner.Issuer
	cfg.Owner.KeyID = c.Owner.KeyID
	cfg.Owner.TokenTTL = c.Owner.TokenTTL
	if c.Owner.Secret != "" {
		cfg.Owner.PrivateKey = []byte(c.Owner.Secret)
	}
	if c.Owner.PrivateKeyFile != "" {
		key, err := os.ReadFile(c.Owner.PrivateKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read owner private key: %w", err)
		}
		cfg.Owner.PrivateKey = key
	}
	if c.Owner.PublicKeyFile != "" {
		key, err := os.ReadFile(c.Owner.PublicKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read owner public key: %w", err)
		}
		cfg.Owner.PublicKey = key
	}

	cfg.Audit.Enabled = c.Audit.Enabled || c.Audit.JSONLog || c.Notify.NATSURL != ""
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull

	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms

	cfg.Notify.NATSSubject = c.Notify.NATSSubject

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
