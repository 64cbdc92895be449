package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PrismoFinance/bounties/internal/config"
	"github.com/PrismoFinance/bounties/internal/dispatch"
	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/metrics"
	"github.com/PrismoFinance/bounties/internal/store"
	"github.com/PrismoFinance/bounties/internal/venue"
)

// app is the wired stack a command runs against.
type app struct {
	cfg        *config.Config
	store      *store.Store
	paper      *venue.Paper
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// appOptions customizes openApp for serve, which loads config and builds
// its logger before the app exists.
type appOptions struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   metrics.Sink
	observers []engine.Observer
}

// loadConfig reads the config file and applies the --db override.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	return cfg, nil
}

// newLogger builds the slog handler selected by cfg. --verbose forces
// debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// newPaper seeds the paper venue from cfg.
func newPaper(cfg config.VenueConfig) (*venue.Paper, error) {
	pairs, err := cfg.PricePairs()
	if err != nil {
		return nil, err
	}
	spread, err := cfg.SpreadDec()
	if err != nil {
		return nil, err
	}
	p := venue.NewPaper()
	p.SetSpread(spread)
	for _, pair := range pairs {
		p.SetPrice(pair.Base, pair.Quote, pair.Price)
	}
	return p, nil
}

// openApp loads config, opens the store and wires engine and dispatcher.
// The ledger config is bootstrapped from the config file on a fresh store.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command, extra appOptions) (*app, error) {
	cfg := extra.cfg
	if cfg == nil {
		loaded, err := loadConfig(opts)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	logger := extra.logger
	if logger == nil {
		logger = newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	}

	paper, err := newPaper(cfg.Venue)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid venue config", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	sink := extra.metrics
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	engineOpts := []engine.Option{engine.WithLogger(logger), engine.WithMetrics(sink)}
	for _, o := range extra.observers {
		engineOpts = append(engineOpts, engine.WithObserver(o))
	}
	eng, err := engine.New(ctx, st, paper, engineOpts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	if err := bootstrap(ctx, cfg, eng); err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		store:      st,
		paper:      paper,
		engine:     eng,
		dispatcher: dispatch.New(eng, dispatch.PaperVenue(paper), dispatch.WithLogger(logger), dispatch.WithMetrics(sink)),
		logger:     logger,
	}, nil
}

func bootstrap(ctx context.Context, cfg *config.Config, eng *engine.Engine) error {
	if cfg.Ledger.Admin == "" {
		if _, err := eng.Config(ctx); err != nil {
			if engine.IsNotFound(err) {
				return NewExitError(ExitCommandError, "ledger is not initialized: set ledger.admin in the config")
			}
			return WrapExitError(ExitCommandError, "failed to read ledger config", err)
		}
		return nil
	}

	ledger, err := cfg.Ledger.VaultConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid ledger config", err)
	}
	if _, err := eng.Bootstrap(ctx, ledger); err != nil {
		return WrapExitError(ExitCommandError, "failed to bootstrap ledger", err)
	}
	return nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// formatter returns the output formatter for cmd.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
}

// submit runs req through the dispatcher and prints the trace.
func submit(ctx context.Context, a *app, f *OutputFormatter, req engine.Request) error {
	trace, err := a.dispatcher.Submit(ctx, req)
	if err != nil {
		return f.Reject(err)
	}
	return f.Success(traceOutput(trace))
}

// commandContext returns cmd's context or a background one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requiredFlag(name string) error {
	return NewExitError(ExitCommandError, fmt.Sprintf("required flag \"%s\" not set", name))
}
