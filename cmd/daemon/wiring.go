// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/speedup/internal/admission"
	"github.com/ManuGH/speedup/internal/api"
	"github.com/ManuGH/speedup/internal/config"
	"github.com/ManuGH/speedup/internal/daemon"
	"github.com/ManuGH/speedup/internal/health"
	"github.com/ManuGH/speedup/internal/housekeeping"
	"github.com/ManuGH/speedup/internal/infra/ffmpeg"
	"github.com/ManuGH/speedup/internal/jobs"
	"github.com/ManuGH/speedup/internal/media"
	"github.com/ManuGH/speedup/internal/storage"
	"github.com/ManuGH/speedup/internal/transcoder"
)

// slotStuckSlack is added to the processing timeout before a held slot is
// reported as stuck.
const slotStuckSlack = time.Minute

// services is the fully wired object graph behind the API.
type services struct {
	uploads  *storage.Local
	outputs  *storage.Local
	slot     *admission.Slot
	executor *jobs.Executor
	jobs     *jobs.Orchestrator
	janitor  *housekeeping.Janitor
	health   *health.Manager
	api      *api.Server
}

// buildServices constructs every collaborator explicitly; nothing is a
// package-level singleton. ctx bounds the background executor.
func buildServices(ctx context.Context, cfg config.AppConfig, runner ffmpeg.Runner) (*services, error) {
	uploads, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload store: %w", err)
	}
	outputs, err := storage.NewLocal(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("output store: %w", err)
	}

	slot := admission.NewSlot()
	registry := jobs.NewRegistry(slot, uploads, outputs)

	inspector := media.NewInspector(media.Config{
		FFprobeBin:        cfg.FFmpeg.FFprobeBin,
		AllowedExtensions: cfg.Media.AllowedExtensions,
		MaxFileSize:       cfg.Media.MaxFileSize,
		MinDuration:       cfg.Media.MinDuration,
		MaxDuration:       cfg.Media.MaxDuration,
		ProbeTimeout:      cfg.Media.ProbeTimeout,
	}, runner)

	pipeline := transcoder.New(transcoder.Config{
		FFmpegBin: cfg.FFmpeg.Bin,
		Encoding: ffmpeg.Encoding{
			VideoCodec: cfg.FFmpeg.VideoCodec,
			AudioCodec: cfg.FFmpeg.AudioCodec,
			Preset:     cfg.FFmpeg.Preset,
		},
		SpeedMultiplier: cfg.Processing.SpeedMultiplier,
		TrimFraction:    cfg.Processing.TrimFraction,
		OutroDuration:   cfg.Processing.OutroDuration,
		OutroText:       cfg.Processing.OutroText,
		OutroColor:      cfg.Processing.OutroColor,
		FontFile:        cfg.FFmpeg.FontFile,
		StageTimeout:    cfg.Processing.StageTimeout,
		Timeout:         cfg.Processing.Timeout,
	}, runner)

	executor := jobs.NewExecutor(ctx)
	orchestrator := jobs.NewOrchestrator(jobs.Deps{
		Registry:  registry,
		Inspector: inspector,
		Pipeline:  pipeline,
		Executor:  executor,
		Uploads:   uploads,
		Outputs:   outputs,
	})

	janitor := housekeeping.New(uploads, outputs, daemon.JanitorConfig(cfg))

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewDirChecker("upload_dir", cfg.UploadDir))
	hm.RegisterChecker(health.NewDirChecker("output_dir", cfg.OutputDir))
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))
	hm.RegisterChecker(health.NewBinaryChecker("ffprobe", cfg.FFmpeg.FFprobeBin))
	hm.RegisterChecker(health.NewSlotChecker(slot, cfg.Processing.Timeout+slotStuckSlack))

	apiCfg := api.Config{
		Version:        cfg.Version,
		MaxUploadBytes: cfg.Media.MaxFileSize,
		CORSOrigins:    cfg.Server.CORSOrigins,
	}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = cfg.LogService
	}
	if cfg.Server.RateLimit.Enabled {
		apiCfg.RateLimitRequests = cfg.Server.RateLimit.Requests
		apiCfg.RateLimitUploadRequests = cfg.Server.RateLimit.UploadRequests
		apiCfg.RateLimitWindow = cfg.Server.RateLimit.Window
	}
	server := api.New(apiCfg, api.Deps{
		Jobs:      orchestrator,
		Artifacts: outputs,
		Janitor:   janitor,
		Health:    hm,
	})

	return &services{
		uploads:  uploads,
		outputs:  outputs,
		slot:     slot,
		executor: executor,
		jobs:     orchestrator,
		janitor:  janitor,
		health:   hm,
		api:      server,
	}, nil
}

// handler returns the API router.
func (s *services) handler() http.Handler { return s.api.Handler() }
