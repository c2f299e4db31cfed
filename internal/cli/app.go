package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hrsync/internal/config"
	"github.com/roach88/hrsync/internal/engine"
	"github.com/roach88/hrsync/internal/seed"
	"github.com/roach88/hrsync/internal/store"
	"github.com/roach88/hrsync/internal/transport"
)

// App is an opened runtime: the resolved configuration, the store restored
// or seeded from it, and a running engine behind the transport simulator.
type App struct {
	Config config.Config
	Store  *store.Store
	Engine *engine.Engine
	Logger *slog.Logger

	stop func()
}

// loadConfig reads --config and applies the --db and --verbose overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}
	if opts.Verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to w, never to the command
// output, so JSON output stays parseable.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openApp opens the configured backend, restores the persisted snapshot
// (seeding and persisting a fresh dataset when there is none) and starts
// the engine.
func openApp(cmd *cobra.Command, opts *RootOptions) (*App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx := commandContext(cmd)
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	policy := transport.NewRandomPolicy(cfg.RandomConfig())
	sim := transport.NewSimulator(policy,
		transport.WithTimeout(cfg.Transport.Timeout),
		transport.WithLogger(logger))
	eng := engine.New(st, sim, engine.WithLogger(logger))

	return &App{
		Config: cfg,
		Store:  st,
		Engine: eng,
		Logger: logger,
		stop:   eng.Start(ctx),
	}, nil
}

// openStore opens the backend and restores or seeds state.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	logger.Debug("opening store", "driver", cfg.Database.Driver, "path", cfg.Database.Path)
	backend, err := store.OpenBackend(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	st := store.New(backend, store.WithKey(cfg.Database.Key), store.WithLogger(logger))

	restored, err := st.Restore(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	if !restored {
		if err := reseed(ctx, st, cfg.Seed, logger); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

// reseed replaces the store's state with a generated dataset and persists it.
func reseed(ctx context.Context, st *store.Store, cfg seed.Config, logger *slog.Logger) error {
	snap := seed.Generate(cfg)
	st.Seed(snap)
	if err := st.Persist(ctx); err != nil {
		return fmt.Errorf("persist seed: %w", err)
	}
	logger.Info("store seeded",
		"jobs", cfg.Jobs,
		"candidates", len(snap.CandidateTimelines),
		"assessments", len(snap.Assessments))
	return nil
}

// Close stops the engine and closes the store.
func (a *App) Close() error {
	a.stop()
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("error closing store", "error", err)
		return err
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
