// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath means ENV-only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// ConfigPath returns the YAML file the loader reads, if any.
func (l *Loader) ConfigPath() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt64(EnvPrefix+key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseList(EnvPrefix+key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}

	// 1. Defaults
	l.setDefaults(&cfg)

	// 2. File
	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	// 3. Environment (highest priority)
	l.mergeEnvConfig(&cfg)

	// 4. Derived values
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir(cfg.Environment)
	}
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(cfg.DataDir, "uploads")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.DataDir, "outputs")
	}
	cfg.Media.AllowedExtensions = normalizeExtensions(cfg.Media.AllowedExtensions)
	cfg.FFmpeg.FFprobeBin = ResolveFFprobeBin(cfg.FFmpeg.FFprobeBin, cfg.FFmpeg.Bin)
	if cfg.FFmpeg.FFprobeBin == "" {
		cfg.FFmpeg.FFprobeBin = "ffprobe"
	}
	cfg.Version = l.version

	// 5. Validate
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields are an error.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// mergeFileConfig overlays the values present in the file.
func mergeFileConfig(cfg *AppConfig, fc *FileConfig) error {
	var errs []error
	dur := func(field, raw string, dst *time.Duration) {
		if raw == "" {
			return
		}
		d, err := parseDurationValue(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", field, raw))
			return
		}
		*dst = d
	}
	str := func(src string, dst *string) {
		if src != "" {
			*dst = src
		}
	}

	str(fc.Environment, &cfg.Environment)
	str(fc.LogLevel, &cfg.LogLevel)
	str(fc.DataDir, &cfg.DataDir)
	str(fc.UploadDir, &cfg.UploadDir)
	str(fc.OutputDir, &cfg.OutputDir)

	s := fc.Server
	str(s.Listen, &cfg.Server.ListenAddr)
	if s.MetricsListen != nil {
		cfg.Server.MetricsListenAddr = *s.MetricsListen
	}
	dur("server.readTimeout", s.ReadTimeout, &cfg.Server.ReadTimeout)
	dur("server.writeTimeout", s.WriteTimeout, &cfg.Server.WriteTimeout)
	dur("server.idleTimeout", s.IdleTimeout, &cfg.Server.IdleTimeout)
	dur("server.shutdownTimeout", s.ShutdownTimeout, &cfg.Server.ShutdownTimeout)
	if len(s.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = s.CORSOrigins
	}
	if s.RateLimit.Enabled != nil {
		cfg.Server.RateLimit.Enabled = *s.RateLimit.Enabled
	}
	if s.RateLimit.Requests != 0 {
		cfg.Server.RateLimit.Requests = s.RateLimit.Requests
	}
	if s.RateLimit.UploadRequests != 0 {
		cfg.Server.RateLimit.UploadRequests = s.RateLimit.UploadRequests
	}
	dur("server.rateLimit.window", s.RateLimit.Window, &cfg.Server.RateLimit.Window)

	m := fc.Media
	if m.MaxFileSize != 0 {
		cfg.Media.MaxFileSize = m.MaxFileSize
	}
	if len(m.AllowedExtensions) > 0 {
		cfg.Media.AllowedExtensions = m.AllowedExtensions
	}
	dur("media.minDuration", m.MinDuration, &cfg.Media.MinDuration)
	dur("media.maxDuration", m.MaxDuration, &cfg.Media.MaxDuration)
	dur("media.probeTimeout", m.ProbeTimeout, &cfg.Media.ProbeTimeout)

	f := fc.FFmpeg
	str(f.Bin, &cfg.FFmpeg.Bin)
	str(f.FFprobeBin, &cfg.FFmpeg.FFprobeBin)
	str(f.VideoCodec, &cfg.FFmpeg.VideoCodec)
	str(f.AudioCodec, &cfg.FFmpeg.AudioCodec)
	str(f.Preset, &cfg.FFmpeg.Preset)
	str(f.FontFile, &cfg.FFmpeg.FontFile)

	p := fc.Processing
	if p.SpeedMultiplier != nil {
		cfg.Processing.SpeedMultiplier = *p.SpeedMultiplier
	}
	if p.TrimFraction != nil {
		cfg.Processing.TrimFraction = *p.TrimFraction
	}
	dur("processing.outroDuration", p.OutroDuration, &cfg.Processing.OutroDuration)
	str(p.OutroText, &cfg.Processing.OutroText)
	str(p.OutroColor, &cfg.Processing.OutroColor)
	dur("processing.stageTimeout", p.StageTimeout, &cfg.Processing.StageTimeout)
	dur("processing.timeout", p.Timeout, &cfg.Processing.Timeout)

	h := fc.Housekeeping
	if h.Enabled != nil {
		cfg.Housekeeping.Enabled = *h.Enabled
	}
	dur("housekeeping.retention", h.Retention, &cfg.Housekeeping.Retention)
	dur("housekeeping.interval", h.Interval, &cfg.Housekeeping.Interval)
	if h.PurgeOnStart != nil {
		cfg.Housekeeping.PurgeOnStart = *h.PurgeOnStart
	}

	t := fc.Telemetry
	if t.Enabled != nil {
		cfg.Telemetry.Enabled = *t.Enabled
	}
	str(t.ExporterType, &cfg.Telemetry.ExporterType)
	str(t.Endpoint, &cfg.Telemetry.Endpoint)
	if t.SamplingRate != nil {
		cfg.Telemetry.SamplingRate = *t.SamplingRate
	}

	return errors.Join(errs...)
}

// mergeEnvConfig overlays SPEEDUP_* environment variables.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Environment = l.envString("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = l.envString("DATA", cfg.DataDir)
	cfg.UploadDir = l.envString("UPLOAD_DIR", cfg.UploadDir)
	cfg.OutputDir = l.envString("OUTPUT_DIR", cfg.OutputDir)

	cfg.Server.ListenAddr = l.envString("LISTEN", cfg.Server.ListenAddr)
	cfg.Server.MetricsListenAddr = l.envString("METRICS_LISTEN", cfg.Server.MetricsListenAddr)
	cfg.Server.ReadTimeout = l.envDuration("READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.CORSOrigins = l.envList("CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.RateLimit.Enabled = l.envBool("RATE_LIMIT_ENABLED", cfg.Server.RateLimit.Enabled)
	cfg.Server.RateLimit.Requests = l.envInt("RATE_LIMIT_REQUESTS", cfg.Server.RateLimit.Requests)
	cfg.Server.RateLimit.UploadRequests = l.envInt("RATE_LIMIT_UPLOADS", cfg.Server.RateLimit.UploadRequests)
	cfg.Server.RateLimit.Window = l.envDuration("RATE_LIMIT_WINDOW", cfg.Server.RateLimit.Window)

	cfg.Media.MaxFileSize = l.envInt64("MAX_FILE_SIZE", cfg.Media.MaxFileSize)
	cfg.Media.AllowedExtensions = l.envList("ALLOWED_EXTENSIONS", cfg.Media.AllowedExtensions)
	cfg.Media.MinDuration = l.envDuration("MIN_DURATION", cfg.Media.MinDuration)
	cfg.Media.MaxDuration = l.envDuration("MAX_DURATION", cfg.Media.MaxDuration)
	cfg.Media.ProbeTimeout = l.envDuration("PROBE_TIMEOUT", cfg.Media.ProbeTimeout)

	cfg.FFmpeg.Bin = l.envString("FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = l.envString("FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.VideoCodec = l.envString("VIDEO_CODEC", cfg.FFmpeg.VideoCodec)
	cfg.FFmpeg.AudioCodec = l.envString("AUDIO_CODEC", cfg.FFmpeg.AudioCodec)
	cfg.FFmpeg.Preset = l.envString("PRESET", cfg.FFmpeg.Preset)
	cfg.FFmpeg.FontFile = l.envString("FONT_FILE", cfg.FFmpeg.FontFile)

	cfg.Processing.SpeedMultiplier = l.envFloat("SPEED_MULTIPLIER", cfg.Processing.SpeedMultiplier)
	cfg.Processing.TrimFraction = l.envFloat("TRIM_FRACTION", cfg.Processing.TrimFraction)
	cfg.Processing.OutroDuration = l.envDuration("OUTRO_DURATION", cfg.Processing.OutroDuration)
	cfg.Processing.OutroText = l.envString("OUTRO_TEXT", cfg.Processing.OutroText)
	cfg.Processing.OutroColor = l.envString("OUTRO_COLOR", cfg.Processing.OutroColor)
	cfg.Processing.StageTimeout = l.envDuration("STAGE_TIMEOUT", cfg.Processing.StageTimeout)
	cfg.Processing.Timeout = l.envDuration("PROCESSING_TIMEOUT", cfg.Processing.Timeout)

	cfg.Housekeeping.Enabled = l.envBool("HOUSEKEEPING_ENABLED", cfg.Housekeeping.Enabled)
	cfg.Housekeeping.Retention = l.envDuration("RETENTION", cfg.Housekeeping.Retention)
	cfg.Housekeeping.Interval = l.envDuration("CLEANUP_INTERVAL", cfg.Housekeeping.Interval)
	cfg.Housekeeping.PurgeOnStart = l.envBool("PURGE_ON_START", cfg.Housekeeping.PurgeOnStart)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

// normalizeExtensions lowercases and dot-prefixes each entry.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
