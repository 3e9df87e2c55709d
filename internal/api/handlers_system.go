// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/speedup/internal/housekeeping"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Video Speed-Up API is running",
		"version": s.cfg.Version,
		"endpoints": map[string]string{
			"upload":        APIPrefix + "/upload",
			"status":        APIPrefix + "/status/{job_id}",
			"download":      APIPrefix + "/download/{job_id}",
			"delete":        APIPrefix + "/job/{job_id}",
			"jobs":          APIPrefix + "/jobs",
			"server_status": APIPrefix + "/server/status",
			"cleanup":       APIPrefix + "/cleanup/old-files",
			"health":        "/healthz",
			"ready":         "/readyz",
		},
	})
}

func (s *Server) handleServerStatus(w http.ResponseWriter, _ *http.Request) {
	reg := s.jobs.Registry()
	var dirs housekeeping.DirectoryStats
	if s.janitor != nil {
		dirs = s.janitor.DirectoryStats()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"server_status":    "running",
		"processing_lock":  reg.Slot().Status(),
		"processing_stats": reg.Stats(),
		"directory_stats":  dirs,
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if s.janitor == nil {
		writeProblem(w, r, http.StatusServiceUnavailable, "system/unavailable", "CLEANUP_UNAVAILABLE",
			"Housekeeping is not configured")
		return
	}
	res := s.janitor.CleanupOldFiles(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cleanup completed",
		"results": res,
	})
}
