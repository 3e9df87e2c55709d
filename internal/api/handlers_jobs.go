// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"

	"github.com/ManuGH/speedup/internal/jobs"
	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/media"
	"github.com/ManuGH/speedup/internal/storage"
	"github.com/go-chi/chi/v5"
)

// uploadField is the multipart form field carrying the video.
const uploadField = "file"

// Jobs is the job-facing surface the handlers need.
type Jobs interface {
	Submit(ctx context.Context, up jobs.Upload) (jobs.SubmitResult, error)
	Delete(ctx context.Context, jobID string) (jobs.CleanupReport, error)
	Registry() *jobs.Registry
}

// jobView is a job plus live slot information.
type jobView struct {
	jobs.Job
	IsCurrentlyProcessing bool     `json:"is_currently_processing"`
	ProcessingDuration    *float64 `json:"processing_duration,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "upload/invalid_request", "INVALID_REQUEST",
			"Expected a multipart/form-data body with a \"file\" field")
		return
	}

	// Stream the first file part straight to storage; nothing is buffered in memory.
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, &media.ValidationError{Kind: media.KindMissingFilename, Detail: "No file provided"})
			return
		}
		if err != nil {
			s.writeError(w, r, fmt.Errorf("read multipart body: %w", err))
			return
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		res, err := s.jobs.Submit(r.Context(), jobs.Upload{Filename: part.FileName(), Body: part})
		_ = part.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, ok := s.jobs.Registry().Get(id)
	if !ok {
		s.writeError(w, r, jobs.ErrJobNotFound)
		return
	}

	view := jobView{Job: job}
	if st := s.jobs.Registry().Slot().Status(); st.IsProcessing && st.CurrentJobID == id {
		view.IsCurrentlyProcessing = true
		d := st.ProcessingDuration
		view.ProcessingDuration = &d
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, ok := s.jobs.Registry().Get(id)
	if !ok {
		s.writeError(w, r, jobs.ErrJobNotFound)
		return
	}
	if job.Status != jobs.StatusCompleted {
		writeProblem(w, r, http.StatusBadRequest, "jobs/not_completed", "JOB_NOT_COMPLETED",
			fmt.Sprintf("Job not completed. Current status: %s", job.Status))
		return
	}
	if job.OutputFilename == "" {
		s.writeError(w, r, errors.New("output filename not recorded on completed job"))
		return
	}

	info, err := s.outputs.Stat(job.OutputFilename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	path, err := s.outputs.Path(job.OutputFilename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := os.Open(path) // #nosec G304 -- path is confined to the output directory by the store
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = storage.ErrNotFound
		}
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": storage.DownloadName(job.OriginalFilename)}))

	logger := xglog.WithContext(r.Context(), s.logger)
	logger.Info().
		Str(xglog.FieldJobID, id).
		Str(xglog.FieldEvent, "download.started").
		Int64("bytes", info.Size).
		Msg("serving processed video")

	// ServeContent handles Range and conditional requests.
	http.ServeContent(w, r, job.OutputFilename, info.ModTime, f)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	report, err := s.jobs.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         fmt.Sprintf("Job %s deleted successfully", id),
		"cleanup_results": report,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list := s.jobs.Registry().List()
	byID := make(map[string]jobs.Job, len(list))
	for _, j := range list {
		byID[j.ID] = j
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_jobs": len(list),
		"jobs":       byID,
	})
}
