package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	goClone "github.com/MrEthical07/goClone"
	natsnotify "github.com/MrEthical07/goClone/notify/nats"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// environment owns the external resources a factory built by the CLI
// depends on.
type environment struct {
	builder *goClone.Builder
	closers []func() error
	logger  *slog.Logger
	// redis is set for the redis backend; the gateway throttle shares it.
	redis redis.UniversalClient
}

// newEnvironment prepares a Builder from the file config: redis (or
// miniredis), the NATS sink and the JSON audit log.
func newEnvironment(fc *FileConfig, logger *slog.Logger) (*environment, error) {
	cfg, err := fc.FactoryConfig()
	if err != nil {
		return nil, err
	}

	env := &environment{logger: logger}
	b := goClone.New().WithConfig(cfg).WithLogger(logger)

	if cfg.State.Backend == goClone.BackendRedis {
		addr := fc.State.RedisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, fmt.Errorf("start miniredis: %w", err)
			}
			env.closers = append(env.closers, func() error { mr.Close(); return nil })
			addr = mr.Addr()
			logger.Info("using miniredis", "addr", addr)
		} else {
			logger.Info("using redis", "addr", addr)
		}

		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		env.closers = append(env.closers, client.Close)
		env.redis = client
		b = b.WithRedis(client)
	}

	var sinks goClone.MultiSink
	if fc.Audit.JSONLog {
		sinks = append(sinks, goClone.NewJSONWriterSink(os.Stderr))
	}
	if fc.Notify.NATSURL != "" {
		conn, err := natsnotify.Connect(fc.Notify.NATSURL, "goclone")
		if err != nil {
			_ = env.Close()
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		env.closers = append(env.closers, func() error { return conn.Drain() })

		sink, err := natsnotify.NewSink(conn,
			natsnotify.WithSubject(cfg.Notify.NATSSubject),
			natsnotify.WithLogger(logger),
		)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
		logger.Info("publishing notifications", "nats", fc.Notify.NATSURL, "subject", cfg.Notify.NATSSubject)
	}
	if len(sinks) > 0 {
		b = b.WithAuditSink(sinks)
	}

	env.builder = b
	return env, nil
}

// Close releases resources in reverse acquisition order. Close the factory
// first.
func (e *environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
