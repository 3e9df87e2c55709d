// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// FileConfig is the YAML shape of the configuration file. Pointer fields
// distinguish "absent" from zero values so the file only overrides what it names.
type FileConfig struct {
	Environment string `yaml:"environment,omitempty"`
	LogLevel    string `yaml:"logLevel,omitempty"`
	DataDir     string `yaml:"dataDir,omitempty"`
	UploadDir   string `yaml:"uploadDir,omitempty"`
	OutputDir   string `yaml:"outputDir,omitempty"`

	Server       ServerFileConfig       `yaml:"server,omitempty"`
	Media        MediaFileConfig        `yaml:"media,omitempty"`
	FFmpeg       FFmpegFileConfig       `yaml:"ffmpeg,omitempty"`
	Processing   ProcessingFileConfig   `yaml:"processing,omitempty"`
	Housekeeping HousekeepingFileConfig `yaml:"housekeeping,omitempty"`
	Telemetry    TelemetryFileConfig    `yaml:"telemetry,omitempty"`
}

type ServerFileConfig struct {
	Listen          string              `yaml:"listen,omitempty"`
	MetricsListen   *string             `yaml:"metricsListen,omitempty"`
	ReadTimeout     string              `yaml:"readTimeout,omitempty"`
	WriteTimeout    string              `yaml:"writeTimeout,omitempty"`
	IdleTimeout     string              `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout string              `yaml:"shutdownTimeout,omitempty"`
	CORSOrigins     []string            `yaml:"corsOrigins,omitempty"`
	RateLimit       RateLimitFileConfig `yaml:"rateLimit,omitempty"`
}

type RateLimitFileConfig struct {
	Enabled        *bool  `yaml:"enabled,omitempty"`
	Requests       int    `yaml:"requests,omitempty"`
	UploadRequests int    `yaml:"uploadRequests,omitempty"`
	Window         string `yaml:"window,omitempty"`
}

type MediaFileConfig struct {
	MaxFileSize       int64    `yaml:"maxFileSize,omitempty"`
	AllowedExtensions []string `yaml:"allowedExtensions,omitempty"`
	MinDuration       string   `yaml:"minDuration,omitempty"`
	MaxDuration       string   `yaml:"maxDuration,omitempty"`
	ProbeTimeout      string   `yaml:"probeTimeout,omitempty"`
}

type FFmpegFileConfig struct {
	Bin        string `yaml:"bin,omitempty"`
	FFprobeBin string `yaml:"ffprobeBin,omitempty"`
	VideoCodec string `yaml:"videoCodec,omitempty"`
	AudioCodec string `yaml:"audioCodec,omitempty"`
	Preset     string `yaml:"preset,omitempty"`
	FontFile   string `yaml:"fontFile,omitempty"`
}

type ProcessingFileConfig struct {
	SpeedMultiplier *float64 `yaml:"speedMultiplier,omitempty"`
	TrimFraction    *float64 `yaml:"trimFraction,omitempty"`
	OutroDuration   string   `yaml:"outroDuration,omitempty"`
	OutroText       string   `yaml:"outroText,omitempty"`
	OutroColor      string   `yaml:"outroColor,omitempty"`
	StageTimeout    string   `yaml:"stageTimeout,omitempty"`
	Timeout         string   `yaml:"timeout,omitempty"`
}

type HousekeepingFileConfig struct {
	Enabled      *bool  `yaml:"enabled,omitempty"`
	Retention    string `yaml:"retention,omitempty"`
	Interval     string `yaml:"interval,omitempty"`
	PurgeOnStart *bool  `yaml:"purgeOnStart,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	ExporterType string   `yaml:"exporterType,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
