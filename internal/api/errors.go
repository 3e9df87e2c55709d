// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ManuGH/speedup/internal/api/problem"
	"github.com/ManuGH/speedup/internal/jobs"
	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/media"
	"github.com/ManuGH/speedup/internal/storage"
)

// busyRetryAfter is the Retry-After hint, in seconds, for a held slot.
const busyRetryAfter = "30"

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem writes a problem body whose title is the status text.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, code, detail string) {
	problem.Write(w, r, status, problemType, http.StatusText(status), code, detail, nil)
}

// writeError maps domain errors onto HTTP problems. Anything unclassified is
// logged and reported as a 500 without leaking internals.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		busy    *jobs.SlotBusyError
		tooBig  *http.MaxBytesError
		invalid *media.ValidationError
	)
	switch {
	case errors.As(err, &tooBig):
		writeProblem(w, r, http.StatusRequestEntityTooLarge, "upload/too_large", "FILE_TOO_LARGE",
			"Request body exceeds the upload size limit")
	case errors.As(err, &invalid):
		writeProblem(w, r, http.StatusBadRequest, "upload/"+string(invalid.Kind),
			strings.ToUpper(string(invalid.Kind)), invalid.Error())
	case errors.As(err, &busy):
		w.Header().Set("Retry-After", busyRetryAfter)
		problem.Write(w, r, http.StatusTooManyRequests, "jobs/server_busy", http.StatusText(http.StatusTooManyRequests),
			"SERVER_BUSY", busy.Error(), map[string]any{"current_job_id": busy.Holder})
	case errors.Is(err, jobs.ErrJobNotFound):
		writeProblem(w, r, http.StatusNotFound, "jobs/not_found", "JOB_NOT_FOUND", "Job not found")
	case errors.Is(err, jobs.ErrJobBusy):
		writeProblem(w, r, http.StatusBadRequest, "jobs/busy", "JOB_BUSY",
			"Cannot delete job that is currently being processed")
	case errors.Is(err, storage.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "jobs/artifact_missing", "ARTIFACT_NOT_FOUND", "Processed file not found")
	case errors.Is(err, jobs.ErrExecutorClosed):
		writeProblem(w, r, http.StatusServiceUnavailable, "system/shutting_down", "SHUTTING_DOWN",
			"Service is shutting down")
	default:
		logger := xglog.WithContext(r.Context(), s.logger)
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "request.failed").
			Str("method", r.Method).
			Str(xglog.FieldPath, r.URL.Path).
			Msg("request failed")
		writeProblem(w, r, http.StatusInternalServerError, "system/internal", "INTERNAL_ERROR",
			"An unexpected error occurred")
	}
}
