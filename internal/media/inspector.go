// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media inspects uploaded files with ffprobe and decides whether
// they are acceptable for processing.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ManuGH/speedup/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/metrics"
	"github.com/rs/zerolog"
)

const defaultProbeTimeout = 30 * time.Second

// MediaInfo is the probe result attached to a job.
type MediaInfo struct {
	Duration float64 `json:"duration"` // seconds
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      int     `json:"fps"`
	Codec    string  `json:"codec"`
	Format   string  `json:"format"`
	Size     int64   `json:"size"`
}

// Config bounds what the inspector accepts.
type Config struct {
	FFprobeBin        string
	AllowedExtensions []string // lower-case, dot-prefixed
	MaxFileSize       int64
	MinDuration       time.Duration
	MaxDuration       time.Duration
	ProbeTimeout      time.Duration
}

// Inspector probes and validates media files.
type Inspector struct {
	cfg    Config
	runner ffmpeg.Runner
	stat   func(string) (os.FileInfo, error)
	logger zerolog.Logger
}

// NewInspector returns an Inspector running ffprobe through runner.
func NewInspector(cfg Config, runner ffmpeg.Runner) *Inspector {
	if cfg.FFprobeBin == "" {
		cfg.FFprobeBin = "ffprobe"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &Inspector{
		cfg:    cfg,
		runner: runner,
		stat:   os.Stat,
		logger: xglog.WithComponent("media"),
	}
}

// Inspect runs ffprobe on path. Errors are ErrProbeTimeout, ErrProbeFailed
// or ErrNoVideoStream, possibly wrapped.
func (i *Inspector) Inspect(ctx context.Context, path string) (MediaInfo, error) {
	start := time.Now()
	info, err := i.inspect(ctx, path)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrProbeTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrNoVideoStream):
		outcome = "no_video"
	case err != nil:
		outcome = "failed"
	}
	metrics.ObserveProbe(outcome, time.Since(start).Seconds())
	return info, err
}

func (i *Inspector) inspect(ctx context.Context, path string) (MediaInfo, error) {
	res, err := i.runner.Run(ctx, ffmpeg.ProbeArgs(i.cfg.FFprobeBin, path), i.cfg.ProbeTimeout)
	switch {
	case errors.Is(err, ffmpeg.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return MediaInfo{}, ErrProbeTimeout
	case err != nil:
		return MediaInfo{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	case res.ExitCode != 0:
		return MediaInfo{}, fmt.Errorf("%w: ffprobe exited with code %d: %s", ErrProbeFailed, res.ExitCode, res.Stderr)
	}

	probe, err := ffmpeg.ParseProbe(res.Stdout)
	if errors.Is(err, ffmpeg.ErrNoVideoStream) {
		return MediaInfo{}, ErrNoVideoStream
	}
	if err != nil {
		return MediaInfo{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	info := MediaInfo{
		Duration: probe.Duration,
		Width:    probe.Width,
		Height:   probe.Height,
		FPS:      probe.FPS,
		Codec:    probe.Codec,
		Format:   probe.Container,
		Size:     probe.Size,
	}
	if info.Size == 0 {
		if fi, statErr := i.stat(path); statErr == nil {
			info.Size = fi.Size()
		}
	}
	return info, nil
}

// CheckExtension is the cheap pre-check done before any bytes are stored.
func (i *Inspector) CheckExtension(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return &ValidationError{Kind: KindMissingFilename, Detail: "No filename provided"}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(i.cfg.AllowedExtensions, ext) {
		return &ValidationError{
			Kind:   KindUnsupportedType,
			Detail: "Unsupported file type. Allowed: " + strings.Join(i.cfg.AllowedExtensions, ", "),
		}
	}
	return nil
}

// Validate runs the ordered checks: extension, existence, size, probe,
// duration. The first failure is returned as a *ValidationError.
func (i *Inspector) Validate(ctx context.Context, path, originalFilename string) (MediaInfo, error) {
	if err := i.CheckExtension(originalFilename); err != nil {
		return MediaInfo{}, err
	}

	fi, err := i.stat(path)
	if err != nil || fi.IsDir() {
		return MediaInfo{}, &ValidationError{Kind: KindFileNotFound, Detail: "File not found", Err: err}
	}

	if fi.Size() > i.cfg.MaxFileSize {
		return MediaInfo{}, &ValidationError{
			Kind:   KindFileTooLarge,
			Detail: fmt.Sprintf("File too large. Maximum size: %.1fMB", float64(i.cfg.MaxFileSize)/(1<<20)),
		}
	}

	info, err := i.Inspect(ctx, path)
	if err != nil {
		i.logger.Info().
			Err(err).
			Str(xglog.FieldPath, path).
			Str(xglog.FieldEvent, "media.probe_rejected").
			Msg("media probe rejected upload")
		return MediaInfo{}, &ValidationError{Kind: KindInvalidMedia, Detail: invalidMediaDetail(err), Err: err}
	}

	minD, maxD := i.cfg.MinDuration.Seconds(), i.cfg.MaxDuration.Seconds()
	if info.Duration < minD || info.Duration > maxD {
		return info, &ValidationError{
			Kind: KindDurationOutOfRange,
			Detail: fmt.Sprintf("Video duration must be between %s and %s seconds",
				formatSeconds(minD), formatSeconds(maxD)),
		}
	}

	return info, nil
}

func invalidMediaDetail(err error) string {
	switch {
	case errors.Is(err, ErrProbeTimeout):
		return "Video analysis timed out"
	case errors.Is(err, ErrNoVideoStream):
		return "No video stream found in file"
	default:
		return "Invalid video file"
	}
}

func formatSeconds(s float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", s), "0"), ".")
}
