package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goClone "github.com/MrEthical07/goClone"
	"github.com/MrEthical07/goClone/gateway"
	"github.com/MrEthical07/goClone/internal/rate"
	"github.com/MrEthical07/goClone/internal/testimpl"
	promexport "github.com/MrEthical07/goClone/metrics/export/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a factory over HTTP",
		Long: `serve deploys a factory over TestImplV1 and exposes it through the HTTP
gateway. TestImplV2 is registered as an upgrade target. Prometheus metrics
are served on /metrics when metrics are enabled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}
			defer env.Close()

			if addr == "" {
				addr = opts.file.HTTP.Addr
			}

			f, err := env.builder.WithImplementation(testimpl.V1()).BuildContext(cmd.Context())
			if err != nil {
				return fmt.Errorf("deploy factory: %w", err)
			}
			defer f.Close()

			if token, err := f.IssueOwnerToken("goclone-serve"); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "owner token: %s\n", token)
			}

			var apiOpts []gateway.Option
			if env.redis != nil && opts.file.HTTP.OwnerMaxFailures > 0 {
				limiter, err := rate.New(env.redis, rate.Config{
					MaxAttempts: opts.file.HTTP.OwnerMaxFailures,
					Window:      opts.file.HTTP.OwnerFailureWindow,
					Prefix:      opts.file.State.RedisPrefix + ":throttle",
				})
				if err != nil {
					return fmt.Errorf("owner throttle: %w", err)
				}
				apiOpts = append(apiOpts, gateway.WithOwnerThrottle(limiter))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr, newServeMux(f, env.logger, apiOpts...), env.logger, f)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func newServeMux(f *goClone.Factory, logger *slog.Logger, extra ...gateway.Option) *http.ServeMux {
	opts := append([]gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithImplementations(map[string]goClone.Implementation{
			testimpl.V1().Name(): testimpl.V1(),
			testimpl.V2().Name(): testimpl.V2(),
		}),
	}, extra...)
	api := gateway.NewHandler(f, opts...)

	reg := promexport.NewRegistry(f, prometheus.Labels{"factory": f.Address().String()})
	reg.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.HandlerFor(reg))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", api)
	return mux
}

func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger, f *goClone.Factory) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("goclone listening", "addr", addr, "factory", f.Address().String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
