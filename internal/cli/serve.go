package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/PrismoFinance/bounties/internal/analytics"
	"github.com/PrismoFinance/bounties/internal/keeper"
	"github.com/PrismoFinance/bounties/internal/metrics"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the keeper and dispatcher until interrupted",
		Long: `Run the keeper and the dispatcher against the configured store.

The keeper polls for due triggers, filled limit orders and due escrow
tasks every keeper.tick_interval and queues the work; the dispatcher
executes it one request at a time. Metrics are served on metrics.addr
when enabled, and event counters are written to Redis when
analytics.redis_addr is set.

Example:
  bounties serve --config bounties.yaml
  bounties serve --db /tmp/test.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	extra := appOptions{cfg: cfg, logger: logger}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		extra.metrics = metrics.NewPrometheusSink(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if cfg.Analytics.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Analytics.RedisAddr})
		defer client.Close()
		sink := analytics.NewRedisSink(client, analytics.Config{
			Window:    cfg.Analytics.Window,
			Retention: cfg.Analytics.Retention,
		}, logger)
		extra.observers = append(extra.observers, sink)
		logger.Info("analytics enabled", "redis", cfg.Analytics.RedisAddr)
	}

	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	a, err := openApp(ctx, opts, cmd, extra)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	k := keeper.New(keeper.Config{
		TickInterval: cfg.Keeper.TickInterval,
		BatchSize:    cfg.Keeper.BatchSize,
		Executor:     cfg.Keeper.Executor,
	}, a.engine, a.paper, a.dispatcher,
		keeper.WithLogger(logger),
		keeper.WithMetrics(metricsOrNoop(extra.metrics)),
	)

	// The dispatcher runs on its own context so queued requests drain
	// after the keeper stops.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()

	var keeperWg, dispatchWg sync.WaitGroup
	var dispatchErr error

	dispatchWg.Add(1)
	go func() {
		defer dispatchWg.Done()
		dispatchErr = a.dispatcher.Run(dispatchCtx)
	}()

	keeperWg.Add(1)
	go func() {
		defer keeperWg.Done()
		_ = k.Run(ctx)
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Keeper started. Press Ctrl-C to stop.")

	<-ctx.Done()

	keeperWg.Wait()
	a.dispatcher.Stop()
	dispatchWg.Wait()

	if metricsServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if dispatchErr != nil && !errors.Is(dispatchErr, context.Canceled) {
		return WrapExitError(ExitCommandError, "dispatcher error", dispatchErr)
	}

	logger.Info("stopped gracefully")
	return nil
}

func metricsOrNoop(s metrics.Sink) metrics.Sink {
	if s == nil {
		return metrics.NewNoopSink()
	}
	return s
}
