// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/media"
	"github.com/ManuGH/speedup/internal/metrics"
	"github.com/ManuGH/speedup/internal/storage"
	"github.com/ManuGH/speedup/internal/telemetry"
	"github.com/ManuGH/speedup/internal/transcoder"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Progress milestones owned by the orchestrator; the pipeline reports the rest.
const (
	ProgressValidated  = 20
	ProgressProcessing = 30
)

const rejectedMessage = "Another video is currently being processed"

// Inspector validates stored uploads.
type Inspector interface {
	CheckExtension(filename string) error
	Validate(ctx context.Context, path, originalFilename string) (media.MediaInfo, error)
}

// Transcoder runs the speed-up pipeline.
type Transcoder interface {
	Run(ctx context.Context, req transcoder.Request) error
}

// Upload is one incoming file.
type Upload struct {
	Filename string
	Body     io.Reader
}

// SubmitResult is returned to the uploader once the job is scheduled.
type SubmitResult struct {
	JobID            string          `json:"job_id"`
	Status           string          `json:"status"`
	Message          string          `json:"message"`
	OriginalFilename string          `json:"original_filename"`
	UploadFilename   string          `json:"upload_filename"`
	MediaInfo        media.MediaInfo `json:"video_info"`
}

// Orchestrator accepts uploads and drives each job through its lifecycle on
// the executor. Only the job's own task mutates the job after creation.
type Orchestrator struct {
	registry  *Registry
	inspector Inspector
	pipeline  Transcoder
	executor  *Executor
	uploads   FileStore
	outputs   FileStore

	mu      sync.Mutex
	handles map[string]*Handle

	now    func() time.Time
	tracer trace.Tracer
	logger zerolog.Logger
}

// Deps wires an Orchestrator.
type Deps struct {
	Registry  *Registry
	Inspector Inspector
	Pipeline  Transcoder
	Executor  *Executor
	Uploads   FileStore
	Outputs   FileStore
}

// NewOrchestrator returns an Orchestrator over deps.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		registry:  deps.Registry,
		inspector: deps.Inspector,
		pipeline:  deps.Pipeline,
		executor:  deps.Executor,
		uploads:   deps.Uploads,
		outputs:   deps.Outputs,
		handles:   make(map[string]*Handle),
		now:       time.Now,
		tracer:    telemetry.Tracer("speedup/jobs"),
		logger:    xglog.WithComponent("orchestrator"),
	}
}

// Registry exposes the job table for read paths.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Submit stores and validates an upload, creates its job and schedules
// processing. Validation failures are returned as *media.ValidationError and
// leave no job and no stored file behind. A held slot yields ErrSlotBusy.
func (o *Orchestrator) Submit(ctx context.Context, up Upload) (SubmitResult, error) {
	logger := xglog.WithContext(ctx, o.logger)

	if strings.TrimSpace(up.Filename) == "" {
		metrics.IncUpload("invalid")
		return SubmitResult{}, o.inspector.CheckExtension(up.Filename)
	}
	if holder, held := o.registry.Slot().Holder(); held {
		metrics.IncUpload("busy")
		return SubmitResult{}, &SlotBusyError{Holder: holder}
	}
	if err := o.inspector.CheckExtension(up.Filename); err != nil {
		metrics.IncUpload("invalid")
		return SubmitResult{}, err
	}

	uploadName := storage.UniqueName(up.Filename)
	n, err := o.uploads.Save(ctx, uploadName, up.Body)
	if err != nil {
		metrics.IncUpload("error")
		return SubmitResult{}, fmt.Errorf("save upload: %w", err)
	}
	metrics.AddUploadBytes(n)

	path, err := o.uploads.Path(uploadName)
	if err != nil {
		o.discardUpload(logger, uploadName)
		metrics.IncUpload("error")
		return SubmitResult{}, fmt.Errorf("resolve upload: %w", err)
	}

	info, err := o.inspector.Validate(ctx, path, up.Filename)
	if err != nil {
		o.discardUpload(logger, uploadName)
		metrics.IncUpload("invalid")
		logger.Info().
			Err(err).
			Str(xglog.FieldFilename, up.Filename).
			Str(xglog.FieldEvent, "upload.rejected").
			Msg("upload failed validation")
		return SubmitResult{}, err
	}

	job := o.registry.Create(up.Filename, uploadName)
	if _, err := o.Start(job.ID); err != nil {
		_ = o.registry.Update(job.ID, StatusRejected, WithError("Service is shutting down"))
		metrics.IncUpload("error")
		return SubmitResult{}, err
	}

	metrics.IncUpload("accepted")
	logger.Info().
		Str(xglog.FieldJobID, job.ID).
		Str(xglog.FieldFilename, up.Filename).
		Int64("bytes", n).
		Str(xglog.FieldEvent, "upload.accepted").
		Msg("upload accepted")

	return SubmitResult{
		JobID:            job.ID,
		Status:           "uploaded",
		Message:          "File uploaded successfully. Processing started.",
		OriginalFilename: up.Filename,
		UploadFilename:   uploadName,
		MediaInfo:        info,
	}, nil
}

// Start schedules background processing of an existing job.
func (o *Orchestrator) Start(jobID string) (*Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, err := o.executor.Go("job:"+jobID, func(ctx context.Context) {
		o.process(ctx, jobID)
	})
	if err != nil {
		return nil, err
	}
	o.handles[jobID] = h
	return h, nil
}

// Wait returns the handle of the job's background task.
func (o *Orchestrator) Wait(jobID string) (*Handle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.handles[jobID]
	return h, ok
}

// Delete removes a job and its files. See Registry.Delete.
func (o *Orchestrator) Delete(ctx context.Context, jobID string) (CleanupReport, error) {
	report, err := o.registry.Delete(ctx, jobID)
	if err != nil {
		return report, err
	}
	o.mu.Lock()
	delete(o.handles, jobID)
	o.mu.Unlock()
	return report, nil
}

func (o *Orchestrator) process(ctx context.Context, id string) {
	ctx = xglog.ContextWithJobID(ctx, id)
	ctx, span := o.tracer.Start(ctx, "job.process", trace.WithAttributes(telemetry.JobAttributes(id, "")...))
	defer span.End()
	logger := xglog.WithContext(ctx, o.logger)

	job, ok := o.registry.Get(id)
	if !ok {
		logger.Warn().Msg("job vanished before processing started")
		return
	}

	status, err := o.run(ctx, logger, job)
	span.SetAttributes(telemetry.JobAttributes("", string(status))...)
	switch {
	case errors.Is(err, ErrJobNotFound):
		logger.Info().Msg("job deleted while processing")
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if uerr := o.registry.Update(id, StatusFailed, WithError(err.Error())); uerr != nil {
			logger.Warn().Err(uerr).Msg("failed to record job failure")
		}
		logger.Error().Err(err).Str(xglog.FieldEvent, "job.failed").Msg("job failed")
	default:
		logger.Info().Str(xglog.FieldEvent, "job."+string(status)).Msg("job finished")
	}
}

// run walks the job from created to a terminal state. A non-nil error means
// the job must be marked failed; ErrJobNotFound means it was deleted meanwhile.
func (o *Orchestrator) run(ctx context.Context, logger zerolog.Logger, job Job) (Status, error) {
	id := job.ID

	if err := o.registry.Update(id, StatusValidating, WithStartedAt(o.now())); err != nil {
		return StatusValidating, err
	}

	inputPath, err := o.uploads.Path(job.UploadFilename)
	if err != nil {
		return StatusFailed, fmt.Errorf("resolve upload: %w", err)
	}
	info, err := o.inspector.Validate(ctx, inputPath, job.OriginalFilename)
	if err != nil {
		return StatusFailed, err
	}
	if err := o.registry.Update(id, StatusValidated, WithMediaInfo(info), WithProgress(ProgressValidated)); err != nil {
		return StatusValidated, err
	}

	outputName := storage.OutputName(job.UploadFilename)
	if err := o.registry.Update(id, StatusProcessing, WithOutputName(outputName), WithProgress(ProgressProcessing)); err != nil {
		return StatusProcessing, err
	}

	if !o.registry.ClaimSlot(id) {
		holder, _ := o.registry.Slot().Holder()
		logger.Info().Str("holder", holder).Str(xglog.FieldEvent, "job.rejected").Msg("transcode slot busy")
		if err := o.registry.Update(id, StatusRejected, WithError(rejectedMessage)); err != nil {
			return StatusRejected, err
		}
		return StatusRejected, nil
	}
	defer o.registry.ReleaseSlot(id)

	outputPath, err := o.outputs.Path(outputName)
	if err != nil {
		return StatusFailed, fmt.Errorf("resolve output: %w", err)
	}
	err = o.pipeline.Run(ctx, transcoder.Request{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Media:      info,
		OnProgress: func(p int) {
			if err := o.registry.Update(id, StatusProcessing, WithProgress(p)); err != nil {
				logger.Debug().Err(err).Int("progress", p).Msg("progress update dropped")
			}
		},
	})
	if err != nil {
		return StatusFailed, err
	}

	size, err := o.outputs.Size(outputName)
	if err != nil || size <= 0 {
		return StatusFailed, errors.New("output file was not created")
	}
	// Free the slot before clients can observe completion.
	o.registry.ReleaseSlot(id)
	if err := o.registry.Update(id, StatusCompleted, WithCompletedAt(o.now()), WithOutputSize(size)); err != nil {
		return StatusCompleted, err
	}
	return StatusCompleted, nil
}

func (o *Orchestrator) discardUpload(logger zerolog.Logger, name string) {
	if _, err := o.uploads.Delete(name); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldFilename, name).Msg("failed to remove rejected upload")
	}
}
