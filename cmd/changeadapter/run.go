package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/change-adapter/internal/app"
	"github.com/nhle/change-adapter/internal/metrics"
	appsync "github.com/nhle/change-adapter/internal/sync"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Health-check all enabled instances until interrupted",
		Long: `Runs periodic health checks for every enabled instance, stores fetched
change tickets and status events, and serves Prometheus metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				env.cfg.Metrics.Addr = metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runPoller(ctx, env)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address (empty disables)")
	return cmd
}

// runPoller blocks until ctx is done.
func runPoller(ctx context.Context, env *environment) error {
	s, err := env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	m := metrics.NewMetrics()
	p := appsync.New(s, m, env.log)

	n := app.RegisterEnabled(p, app.BuildAdapters(env.cfg, env.log))
	if n == 0 {
		return errors.New("no enabled instances configured; run `changeadapter configure`")
	}

	var srv *http.Server
	if addr := env.cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			env.log.Info().Str("addr", addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	env.log.Info().Int("instances", n).Msg("starting health checks")
	p.Start(ctx)
	<-ctx.Done()

	env.log.Info().Msg("shutting down")
	p.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stopping metrics server: %w", err)
		}
	}
	return nil
}
