// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcoder runs the three-stage speed-up pipeline: re-time and
// trim the upload, synthesise an outro clip, concatenate the two.
package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/speedup/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/media"
	"github.com/ManuGH/speedup/internal/metrics"
	"github.com/ManuGH/speedup/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage names as used in logs, metrics and StageError.
const (
	StageSpeedTrim = "speed_trim"
	StageOutro     = "outro"
	StageConcat    = "concat"
)

// Progress milestones reported through Request.OnProgress.
const (
	ProgressStarted   = 40
	ProgressSpeedTrim = 55
	ProgressOutro     = 70
	ProgressDone      = 90
)

// Config parameterises every run.
type Config struct {
	FFmpegBin       string
	Encoding        ffmpeg.Encoding
	SpeedMultiplier float64
	TrimFraction    float64
	OutroDuration   time.Duration
	OutroText       string
	OutroColor      string
	FontFile        string
	// StageTimeout bounds each ffmpeg invocation.
	StageTimeout time.Duration
	// Timeout bounds the whole run.
	Timeout time.Duration
}

// Request is one run. Media must describe InputPath.
type Request struct {
	InputPath  string
	OutputPath string
	Media      media.MediaInfo
	OnProgress func(percent int)
}

// Pipeline runs requests through ffmpeg. It holds no per-run state and is
// safe for concurrent use, although the caller serialises runs.
type Pipeline struct {
	cfg    Config
	runner ffmpeg.Runner
	remove func(string) error
	tracer trace.Tracer
	logger zerolog.Logger
}

// New returns a Pipeline executing through runner.
func New(cfg Config, runner ffmpeg.Runner) *Pipeline {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	return &Pipeline{
		cfg:    cfg,
		runner: runner,
		remove: os.Remove,
		tracer: telemetry.Tracer("speedup/transcoder"),
		logger: xglog.WithComponent("transcoder"),
	}
}

// TempPaths returns the intermediate files derived from an output path:
// the re-timed main clip and the outro clip.
func TempPaths(outputPath string) (mainClip, outro string) {
	dir := filepath.Dir(outputPath)
	stem := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	return filepath.Join(dir, stem+"_temp.mp4"), filepath.Join(dir, stem+"_outro.mp4")
}

type stage struct {
	name     string
	argv     []string
	progress int
}

// Run executes the three stages in order. Intermediate files are removed on
// every exit path; a failed run also removes any partial output.
//
// Errors: *StageError for a stage failure or per-stage timeout,
// ErrPipelineTimeout when the overall deadline expires, ErrCanceled when ctx ends.
func (p *Pipeline) Run(ctx context.Context, req Request) (err error) {
	logger := xglog.WithContext(ctx, p.logger)

	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(telemetry.MediaAttributes(req.Media.Codec, req.Media.Width, req.Media.Height, req.Media.FPS, req.Media.Duration)...))
	defer span.End()

	runCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	tempA, tempB := TempPaths(req.OutputPath)
	defer func() {
		p.cleanup(logger, tempA, tempB)
		if err != nil {
			p.cleanup(logger, req.OutputPath)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	report := func(pct int) {
		if req.OnProgress != nil {
			req.OnProgress(pct)
		}
	}

	stages := p.plan(req, tempA, tempB)

	logger.Info().
		Str(xglog.FieldEvent, "pipeline.start").
		Str(xglog.FieldPath, req.InputPath).
		Float64(xglog.FieldDuration, req.Media.Duration).
		Str(xglog.FieldResolution, fmt.Sprintf("%dx%d", req.Media.Width, req.Media.Height)).
		Int(xglog.FieldFPS, req.Media.FPS).
		Msg("transcode pipeline starting")
	report(ProgressStarted)

	for i, st := range stages {
		if err := p.runStage(ctx, runCtx, logger, i+1, st); err != nil {
			return err
		}
		report(st.progress)
	}

	logger.Info().
		Str(xglog.FieldEvent, "pipeline.done").
		Str(xglog.FieldPath, req.OutputPath).
		Msg("transcode pipeline finished")
	return nil
}

// plan builds the argv of each stage.
func (p *Pipeline) plan(req Request, tempA, tempB string) []stage {
	newDuration := req.Media.Duration * (1 - p.cfg.TrimFraction)
	return []stage{
		{
			name: StageSpeedTrim,
			argv: ffmpeg.SpeedTrimArgs(p.cfg.FFmpegBin, ffmpeg.SpeedTrim{
				Input:       req.InputPath,
				Output:      tempA,
				Speed:       p.cfg.SpeedMultiplier,
				NewDuration: newDuration,
			}, p.cfg.Encoding),
			progress: ProgressSpeedTrim,
		},
		{
			name: StageOutro,
			argv: ffmpeg.OutroArgs(p.cfg.FFmpegBin, ffmpeg.Outro{
				Output:   tempB,
				Width:    req.Media.Width,
				Height:   req.Media.Height,
				FPS:      req.Media.FPS,
				Duration: p.cfg.OutroDuration.Seconds(),
				Color:    p.cfg.OutroColor,
				Text:     p.cfg.OutroText,
				FontFile: p.cfg.FontFile,
			}, p.cfg.Encoding),
			progress: ProgressOutro,
		},
		{
			name:     StageConcat,
			argv:     ffmpeg.ConcatArgs(p.cfg.FFmpegBin, tempA, tempB, req.OutputPath, p.cfg.Encoding),
			progress: ProgressDone,
		},
	}
}

func (p *Pipeline) runStage(parent, runCtx context.Context, logger zerolog.Logger, index int, st stage) error {
	stageCtx, span := p.tracer.Start(runCtx, "pipeline."+st.name,
		trace.WithAttributes(telemetry.StageAttributes(index, st.name)...))
	defer span.End()

	stageLog := logger.With().Str(xglog.FieldStage, st.name).Logger()
	stageLog.Debug().Strs("argv", st.argv).Msg("stage starting")

	start := time.Now()
	res, err := p.runner.Run(stageCtx, st.argv, p.cfg.StageTimeout)
	elapsed := time.Since(start)
	metrics.ObserveStage(st.name, elapsed.Seconds())

	if err == nil && res.ExitCode == 0 {
		stageLog.Info().
			Str(xglog.FieldEvent, "pipeline.stage_done").
			Dur("elapsed", elapsed).
			Msg("stage finished")
		return nil
	}

	var out error
	reason := "exit"
	switch {
	case err == nil:
		out = &StageError{Index: index, Name: st.name, ExitCode: res.ExitCode, Stderr: res.Stderr}
	case parent.Err() != nil:
		reason = "canceled"
		out = fmt.Errorf("%w during step %d (%s): %v", ErrCanceled, index, st.name, parent.Err())
	case runCtx.Err() != nil:
		reason = "deadline"
		out = fmt.Errorf("%w during step %d (%s)", ErrPipelineTimeout, index, st.name)
	case errors.Is(err, ffmpeg.ErrTimeout):
		reason = "timeout"
		out = &StageError{Index: index, Name: st.name, ExitCode: -1, Stderr: res.Stderr, Err: err}
	default:
		reason = "start"
		out = &StageError{Index: index, Name: st.name, ExitCode: -1, Stderr: res.Stderr, Err: err}
	}

	metrics.IncPipelineFailure(st.name, reason)
	span.SetAttributes(telemetry.ErrorAttributes(out, reason)...)
	span.SetStatus(codes.Error, reason)
	stageLog.Error().
		Err(out).
		Str(xglog.FieldEvent, "pipeline.stage_failed").
		Int(xglog.FieldExitCode, res.ExitCode).
		Str("stderr_tail", res.Stderr).
		Msg("stage failed")
	return out
}

func (p *Pipeline) cleanup(logger zerolog.Logger, paths ...string) {
	for _, path := range paths {
		if err := p.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("failed to remove pipeline file")
		}
	}
}
