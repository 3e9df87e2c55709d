// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	defaultListenAddr        = ":8001"
	defaultMetricsListenAddr = ":9091"
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 5 * time.Minute // uploads up to the size ceiling
	defaultWriteTimeout      = 5 * time.Minute // downloads
	defaultIdleTimeout       = 120 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
	defaultShutdownTimeout   = 15 * time.Second

	defaultMaxFileSize  = 100 << 20
	defaultMinDuration  = 1 * time.Second
	defaultMaxDuration  = 65 * time.Second
	defaultProbeTimeout = 30 * time.Second

	defaultSpeedMultiplier = 1.001
	defaultTrimFraction    = 0.002
	defaultOutroDuration   = 1500 * time.Millisecond
	defaultOutroText       = "Follow for more"
	defaultOutroColor      = "black"
	defaultStageTimeout    = 300 * time.Second
	defaultPipelineTimeout = 300 * time.Second

	defaultRetention = time.Hour
	defaultInterval  = time.Hour

	defaultRateLimitRequests = 120
	defaultUploadRequests    = 10
	defaultRateLimitWindow   = time.Minute
)

// DefaultAllowedExtensions is the upload extension allow-set.
var DefaultAllowedExtensions = []string{".mp4", ".mov", ".avi", ".mkv"}

// DefaultCORSOrigins are the browser origins allowed by default.
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8000",
	"https://omnixone.com",
	"https://api.omnixone.com",
}

// DefaultDataDir returns the data directory for an environment: the system
// temp directory in production, ./temp otherwise.
func DefaultDataDir(environment string) string {
	if environment == EnvProduction {
		return filepath.Join(os.TempDir(), "video_processor")
	}
	return "temp"
}

func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.Environment = EnvDevelopment
	cfg.LogLevel = "info"
	cfg.LogService = "speedup"

	cfg.Server = ServerConfig{
		ListenAddr:        defaultListenAddr,
		MetricsListenAddr: defaultMetricsListenAddr,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		ShutdownTimeout:   defaultShutdownTimeout,
		CORSOrigins:       append([]string(nil), DefaultCORSOrigins...),
		RateLimit: RateLimitConfig{
			Enabled:        true,
			Requests:       defaultRateLimitRequests,
			UploadRequests: defaultUploadRequests,
			Window:         defaultRateLimitWindow,
		},
	}

	cfg.Media = MediaConfig{
		MaxFileSize:       defaultMaxFileSize,
		AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
		MinDuration:       defaultMinDuration,
		MaxDuration:       defaultMaxDuration,
		ProbeTimeout:      defaultProbeTimeout,
	}

	cfg.FFmpeg = FFmpegConfig{
		Bin:        "ffmpeg",
		VideoCodec: "libx264",
		AudioCodec: "aac",
		Preset:     "fast",
	}

	cfg.Processing = ProcessingConfig{
		SpeedMultiplier: defaultSpeedMultiplier,
		TrimFraction:    defaultTrimFraction,
		OutroDuration:   defaultOutroDuration,
		OutroText:       defaultOutroText,
		OutroColor:      defaultOutroColor,
		StageTimeout:    defaultStageTimeout,
		Timeout:         defaultPipelineTimeout,
	}

	cfg.Housekeeping = HousekeepingConfig{
		Enabled:   true,
		Retention: defaultRetention,
		Interval:  defaultInterval,
	}

	cfg.Telemetry = TelemetryConfig{
		ExporterType: "grpc",
		Endpoint:     "localhost:4317",
		SamplingRate: 1.0,
	}
}
