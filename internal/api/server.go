// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the upload, status and download HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/speedup/internal/api/middleware"
	"github.com/ManuGH/speedup/internal/health"
	"github.com/ManuGH/speedup/internal/housekeeping"
	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// APIPrefix is the mount point of all job routes.
const APIPrefix = "/api/v1"

// multipartOverhead is slack on top of the file ceiling for multipart framing.
const multipartOverhead = 1 << 20

// ArtifactStore resolves processed outputs for download.
type ArtifactStore interface {
	Stat(name string) (storage.FileInfo, error)
	Path(name string) (string, error)
}

// Housekeeper runs on-demand cleanup and reports directory usage.
type Housekeeper interface {
	CleanupOldFiles(ctx context.Context) housekeeping.CleanupResult
	DirectoryStats() housekeeping.DirectoryStats
}

// Config holds the HTTP-facing settings.
type Config struct {
	Version string
	// MaxUploadBytes caps the accepted file size; the request body may exceed
	// it by multipart framing only.
	MaxUploadBytes int64
	CORSOrigins    []string
	// TracingService names the tracer; empty disables request spans.
	TracingService string

	RateLimitRequests       int
	RateLimitUploadRequests int
	RateLimitWindow         time.Duration
}

// Deps are the collaborators behind the handlers.
type Deps struct {
	Jobs      Jobs
	Artifacts ArtifactStore
	Janitor   Housekeeper
	Health    *health.Manager
}

// Server owns the router and its dependencies.
type Server struct {
	cfg     Config
	jobs    Jobs
	outputs ArtifactStore
	janitor Housekeeper
	health  *health.Manager

	now    func() time.Time
	logger zerolog.Logger
}

// New returns a Server. Handler builds the router.
func New(cfg Config, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.NewManager(cfg.Version)
	}
	return &Server{
		cfg:     cfg,
		jobs:    deps.Jobs,
		outputs: deps.Artifacts,
		janitor: deps.Janitor,
		health:  deps.Health,
		now:     time.Now,
		logger:  xglog.WithComponent("api"),
	}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "system/not_found", "NOT_FOUND", "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "system/method_not_allowed", "METHOD_NOT_ALLOWED",
			r.Method+" is not supported on this resource")
	})

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestLimit: s.cfg.RateLimitRequests,
			WindowSize:   s.cfg.RateLimitWindow,
		}))

		r.With(middleware.RateLimit(middleware.RateLimitConfig{
			RequestLimit: s.cfg.RateLimitUploadRequests,
			WindowSize:   s.cfg.RateLimitWindow,
		})).Post("/upload", s.handleUpload)

		r.Get("/status/{job_id}", s.handleStatus)
		r.Get("/download/{job_id}", s.handleDownload)
		r.Delete("/job/{job_id}", s.handleDeleteJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/server/status", s.handleServerStatus)
		r.Post("/cleanup/old-files", s.handleCleanup)
	})

	return r
}
