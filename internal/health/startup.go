// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ManuGH/speedup/internal/config"
	"github.com/ManuGH/speedup/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	return performStartupChecks(ctx, cfg, exec.LookPath)
}

func performStartupChecks(_ context.Context, cfg config.AppConfig, lookPath func(string) (string, error)) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running startup checks")

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := checkWritableDir(dir); err != nil {
			return fmt.Errorf("data directory check failed: %w", err)
		}
		logger.Info().Str("path", dir).Msg("directory is writable")
	}

	if err := checkTargetedValidations(logger, cfg, lookPath); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

// checkTargetedValidations performs runtime-critical validations
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig, lookPath func(string) (string, error)) error {
	if cfg.Server.ListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid API listen address %q: %w", cfg.Server.ListenAddr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid API listen port %q in %q", port, cfg.Server.ListenAddr)
		}
	}

	for _, bin := range []string{cfg.FFmpeg.Bin, cfg.FFmpeg.FFprobeBin} {
		bin = strings.TrimSpace(bin)
		if bin == "" {
			continue
		}
		resolved, err := lookPath(bin)
		if err != nil {
			return fmt.Errorf("binary not found (%s): %w", bin, err)
		}
		logger.Info().Str("bin", resolved).Msg("tool available")
	}

	if cfg.FFmpeg.FontFile != "" {
		if err := checkFileReadable(cfg.FFmpeg.FontFile); err != nil {
			return fmt.Errorf("outro font file: %w", err)
		}
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; uploads and results may be lost on reboot")
	}
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
