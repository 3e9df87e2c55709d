// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/speedup/internal/config"
	"github.com/ManuGH/speedup/internal/daemon"
	"github.com/ManuGH/speedup/internal/health"
	"github.com/ManuGH/speedup/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/telemetry"
	"github.com/ManuGH/speedup/internal/version"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "speedup",
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	// A missing .env is normal; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Str("event", "dotenv.load_failed").Msg("failed to load .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		effectiveConfigPath = resolveDefaultConfigPath()
	}

	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("environment", cfg.Environment).
		Str("addr", cfg.Server.ListenAddr).
		Msg("starting speedup")
	logger.Info().Msgf("→ Upload dir: %s", cfg.UploadDir)
	logger.Info().Msgf("→ Output dir: %s", cfg.OutputDir)
	logger.Info().Msgf("→ Speed multiplier: %gx", cfg.Processing.SpeedMultiplier)
	logger.Info().Msgf("→ Max file size: %d MiB", cfg.Media.MaxFileSize/(1<<20))
	logger.Info().Msgf("→ Duration window: %s to %s", cfg.Media.MinDuration, cfg.Media.MaxDuration)

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialise tracing")
	}

	// The executor outlives ctx so in-flight jobs drain during shutdown.
	svc, err := buildServices(context.WithoutCancel(ctx), cfg, ffmpeg.NewExecRunner(xglog.WithComponent("ffmpeg")))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "services.init_failed").
			Msg("failed to wire services")
	}

	if cfg.Housekeeping.PurgeOnStart {
		res := svc.janitor.ForceCleanupAll(ctx)
		logger.Info().
			Int("uploads_deleted", res.UploadFilesDeleted).
			Int("outputs_deleted", res.OutputFilesDeleted).
			Msg("purged data directories on startup")
	}

	metricsAddr := strings.TrimSpace(cfg.Server.MetricsListenAddr)
	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:         logger,
		APIHandler:     svc.handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    metricsAddr,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	// LIFO: jobs drain before the tracer flushes their spans.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("executor", svc.executor.Shutdown)

	cfgHolder := config.NewConfigHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, cfgHolder, svc.janitor)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
