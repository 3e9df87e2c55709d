// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Environment names accepted by SPEEDUP_ENVIRONMENT.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version     string
	Environment string
	LogLevel    string
	LogService  string

	// DataDir is the parent of UploadDir and OutputDir unless those are set explicitly.
	DataDir   string
	UploadDir string
	OutputDir string

	Server       ServerConfig
	Media        MediaConfig
	FFmpeg       FFmpegConfig
	Processing   ProcessingConfig
	Housekeeping HousekeepingConfig
	Telemetry    TelemetryConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the API listen address (e.g. ":8001")
	ListenAddr string
	// MetricsListenAddr serves /metrics; empty disables the listener
	MetricsListenAddr string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	CORSOrigins []string
	RateLimit   RateLimitConfig
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Enabled bool
	// Requests per Window on the whole API
	Requests int
	// UploadRequests per Window on POST /upload
	UploadRequests int
	Window         time.Duration
}

// MediaConfig bounds what uploads are accepted.
type MediaConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
	MinDuration       time.Duration
	MaxDuration       time.Duration
	ProbeTimeout      time.Duration
}

// FFmpegConfig locates the tools and fixes the encoder settings.
type FFmpegConfig struct {
	Bin        string
	FFprobeBin string
	VideoCodec string
	AudioCodec string
	Preset     string
	FontFile   string
}

// ProcessingConfig parameterises the three-stage pipeline.
type ProcessingConfig struct {
	SpeedMultiplier float64
	TrimFraction    float64
	OutroDuration   time.Duration
	OutroText       string
	OutroColor      string
	// StageTimeout bounds each ffmpeg invocation
	StageTimeout time.Duration
	// Timeout bounds the whole pipeline
	Timeout time.Duration
}

// HousekeepingConfig controls age-based file cleanup.
type HousekeepingConfig struct {
	Enabled      bool
	Retention    time.Duration
	Interval     time.Duration
	PurgeOnStart bool
}

// TelemetryConfig mirrors telemetry.Config.
type TelemetryConfig struct {
	Enabled      bool
	ExporterType string
	Endpoint     string
	SamplingRate float64
}
