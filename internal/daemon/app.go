// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/speedup/internal/config"
	"github.com/ManuGH/speedup/internal/housekeeping"
	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/rs/zerolog"
)

// Janitor is the periodic cleanup loop the daemon owns.
type Janitor interface {
	Run(ctx context.Context) error
	Apply(cfg housekeeping.Config)
}

// App owns the long-lived runtime lifecycle (watchers, reload wiring, the
// cleanup loop) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	janitor      Janitor
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder and janitor may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, janitor Janitor) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		janitor:      janitor,
		reloadSignal: syscall.SIGHUP,
	}
}

// JanitorConfig derives the cleanup settings; disabled housekeeping parks the loop.
func JanitorConfig(cfg config.AppConfig) housekeeping.Config {
	hc := housekeeping.Config{Retention: cfg.Housekeeping.Retention}
	if cfg.Housekeeping.Enabled {
		hc.Interval = cfg.Housekeeping.Interval
	}
	return hc
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.janitor != nil {
		g.Go(func() error { return a.janitor.Run(ctx) })
	}

	if a.cfgHolder != nil {
		// The watcher is best-effort: a broken watch must not take the API down.
		g.Go(func() error {
			if err := a.cfgHolder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
			}
			return nil
		})

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// apply pushes the hot-reloadable fields into the running subsystems.
func (a *App) apply(cfg config.AppConfig) {
	if cfg.LogLevel != "" {
		if err := xglog.SetLevel(cfg.LogLevel); err != nil {
			a.logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
		}
	}
	if a.janitor != nil {
		a.janitor.Apply(JanitorConfig(cfg))
	}
	a.logger.Info().Str("event", "config.applied").Msg("applied reloaded configuration")
}
