// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"github.com/ManuGH/speedup/internal/validate"
)

// Validate checks a resolved configuration. Upload and output directories are
// created (0755) when missing.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("Environment", cfg.Environment, []string{EnvDevelopment, EnvProduction})
	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("LogLevel", err.Error(), cfg.LogLevel)
	}

	v.Directory("UploadDir", cfg.UploadDir, false)
	v.Directory("OutputDir", cfg.OutputDir, false)
	if cfg.UploadDir == cfg.OutputDir {
		v.AddError("OutputDir", "output directory must differ from upload directory", cfg.OutputDir)
	}

	v.ListenAddr("Server.ListenAddr", cfg.Server.ListenAddr)
	if cfg.Server.MetricsListenAddr != "" {
		v.ListenAddr("Server.MetricsListenAddr", cfg.Server.MetricsListenAddr)
		if cfg.Server.MetricsListenAddr == cfg.Server.ListenAddr {
			v.AddError("Server.MetricsListenAddr", "metrics listener must differ from API listener", cfg.Server.MetricsListenAddr)
		}
	}
	if cfg.Server.RateLimit.Enabled {
		v.Positive("Server.RateLimit.Requests", int64(cfg.Server.RateLimit.Requests))
		v.Positive("Server.RateLimit.UploadRequests", int64(cfg.Server.RateLimit.UploadRequests))
		v.Positive("Server.RateLimit.Window", int64(cfg.Server.RateLimit.Window))
	}

	v.Positive("Media.MaxFileSize", cfg.Media.MaxFileSize)
	v.Extensions("Media.AllowedExtensions", cfg.Media.AllowedExtensions)
	v.Positive("Media.MinDuration", int64(cfg.Media.MinDuration))
	if cfg.Media.MaxDuration < cfg.Media.MinDuration {
		v.AddError("Media.MaxDuration", "must not be below Media.MinDuration", cfg.Media.MaxDuration.String())
	}
	v.Positive("Media.ProbeTimeout", int64(cfg.Media.ProbeTimeout))

	v.NotEmpty("FFmpeg.Bin", cfg.FFmpeg.Bin)
	v.NotEmpty("FFmpeg.FFprobeBin", cfg.FFmpeg.FFprobeBin)
	v.NotEmpty("FFmpeg.VideoCodec", cfg.FFmpeg.VideoCodec)
	v.NotEmpty("FFmpeg.AudioCodec", cfg.FFmpeg.AudioCodec)
	v.NotEmpty("FFmpeg.Preset", cfg.FFmpeg.Preset)

	// Must speed up; atempo caps a single filter instance at 100.
	if m := cfg.Processing.SpeedMultiplier; m <= 1 {
		v.AddError("Processing.SpeedMultiplier", fmt.Sprintf("must be greater than 1, got %g", m), m)
	} else {
		v.FloatRange("Processing.SpeedMultiplier", m, 1, 100)
	}
	v.FloatRange("Processing.TrimFraction", cfg.Processing.TrimFraction, 0, 0.5)
	v.Positive("Processing.OutroDuration", int64(cfg.Processing.OutroDuration))
	v.NotEmpty("Processing.OutroColor", cfg.Processing.OutroColor)
	v.Positive("Processing.StageTimeout", int64(cfg.Processing.StageTimeout))
	v.Positive("Processing.Timeout", int64(cfg.Processing.Timeout))

	if cfg.Housekeeping.Enabled {
		v.Positive("Housekeeping.Retention", int64(cfg.Housekeeping.Retention))
		v.Positive("Housekeeping.Interval", int64(cfg.Housekeeping.Interval))
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.ExporterType", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
