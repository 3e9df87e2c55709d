// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/speedup/internal/admission"
	"github.com/ManuGH/speedup/internal/housekeeping"
	"github.com/ManuGH/speedup/internal/jobs"
	"github.com/ManuGH/speedup/internal/media"
	"github.com/ManuGH/speedup/internal/storage"
	"github.com/ManuGH/speedup/internal/transcoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct{}

func (fakeInspector) CheckExtension(name string) error {
	if strings.TrimSpace(name) == "" {
		return &media.ValidationError{Kind: media.KindMissingFilename, Detail: "No filename provided"}
	}
	if !strings.HasSuffix(strings.ToLower(name), ".mp4") {
		return &media.ValidationError{Kind: media.KindUnsupportedType, Detail: "Unsupported file type. Allowed: .mp4"}
	}
	return nil
}

func (f fakeInspector) Validate(_ context.Context, _ string, name string) (media.MediaInfo, error) {
	if err := f.CheckExtension(name); err != nil {
		return media.MediaInfo{}, err
	}
	return media.MediaInfo{Duration: 10, Width: 1280, Height: 720, FPS: 30, Codec: "h264", Format: "mp4"}, nil
}

// gatedPipeline writes the output once release is closed; a nil release
// completes immediately.
type gatedPipeline struct {
	started chan string
	release chan struct{}
}

func (g *gatedPipeline) Run(ctx context.Context, req transcoder.Request) error {
	if g.started != nil {
		g.started <- req.OutputPath
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return os.WriteFile(req.OutputPath, []byte("processed-video"), 0o600)
}

type testEnv struct {
	handler http.Handler
	orch    *jobs.Orchestrator
	uploads *storage.Local
	outputs *storage.Local
}

func newEnv(t *testing.T, pipe *gatedPipeline, cfg Config) *testEnv {
	t.Helper()
	root := t.TempDir()
	uploads, err := storage.NewLocal(filepath.Join(root, "uploads"))
	require.NoError(t, err)
	outputs, err := storage.NewLocal(filepath.Join(root, "outputs"))
	require.NoError(t, err)

	exec := jobs.NewExecutor(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, exec.Shutdown(ctx))
	})

	orch := jobs.NewOrchestrator(jobs.Deps{
		Registry:  jobs.NewRegistry(admission.NewSlot(), uploads, outputs),
		Inspector: fakeInspector{},
		Pipeline:  pipe,
		Executor:  exec,
		Uploads:   uploads,
		Outputs:   outputs,
	})

	if cfg.Version == "" {
		cfg.Version = "test"
	}
	srv := New(cfg, Deps{
		Jobs:      orch,
		Artifacts: outputs,
		Janitor:   housekeeping.New(uploads, outputs, housekeeping.Config{Retention: time.Hour}),
	})
	return &testEnv{handler: srv.Handler(), orch: orch, uploads: uploads, outputs: outputs}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, filename string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, "file", filename, []byte("fake-video-bytes"))
	return e.do(t, http.MethodPost, "/api/v1/upload", body, ct)
}

func (e *testEnv) wait(t *testing.T, id string) {
	t.Helper()
	h, ok := e.orch.Wait(id)
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestRoot(t *testing.T) {
	env := newEnv(t, &gatedPipeline{}, Config{Version: "1.2.3"})
	w := env.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "/api/v1/upload", body["endpoints"].(map[string]any)["upload"])
}

func TestUploadProcessDownload(t *testing.T) {
	env := newEnv(t, &gatedPipeline{}, Config{MaxUploadBytes: 1 << 20})

	w := env.upload(t, "My Clip.mp4")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "uploaded", body["status"])
	assert.Equal(t, "My Clip.mp4", body["original_filename"])
	assert.True(t, strings.HasSuffix(body["upload_filename"].(string), "_My_Clip.mp4"))
	assert.Equal(t, float64(1280), body["video_info"].(map[string]any)["width"])

	id := body["job_id"].(string)
	require.Len(t, id, storage.TokenLength)
	env.wait(t, id)

	w = env.do(t, http.MethodGet, "/api/v1/status/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, "completed", status["status"])
	assert.Equal(t, float64(100), status["progress"])
	assert.Equal(t, false, status["is_currently_processing"])
	_, hasDuration := status["processing_duration"]
	assert.False(t, hasDuration)

	w = env.do(t, http.MethodGet, "/api/v1/download/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=speedup_My_Clip.mp4", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "processed-video", w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/jobs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.Equal(t, float64(1), list["total_jobs"])
	assert.Contains(t, list["jobs"].(map[string]any), id)
}

func TestUpload_ValidationErrors(t *testing.T) {
	env := newEnv(t, &gatedPipeline{}, Config{})

	t.Run("unsupported extension", func(t *testing.T) {
		w := env.upload(t, "notes.txt")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
		body := decode(t, w)
		assert.Equal(t, "UNSUPPORTED_TYPE", body["code"])
		assert.Equal(t, "upload/unsupported_type", body["type"])
		assert.NotEmpty(t, body["request_id"])
	})

	t.Run("no file field", func(t *testing.T) {
		body, ct := multipartBody(t, "other", "a.mp4", []byte("x"))
		w := env.do(t, http.MethodPost, "/api/v1/upload", body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "MISSING_FILENAME", decode(t, w)["code"])
	})

	t.Run("not multipart", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/upload", strings.NewReader("{}"), "application/json")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decode(t, w)["code"])
	})

	files, err := env.uploads.List()
	require.NoError(t, err)
	assert.Empty(t, files, "rejected uploads leave nothing behind")
	assert.Empty(t, env.orch.Registry().List())
}

func TestUpload_BodyTooLarge(t *testing.T) {
	env := newEnv(t, &gatedPipeline{}, Config{MaxUploadBytes: 10})

	body, ct := multipartBody(t, "file", "big.mp4", make([]byte, multipartOverhead+1024))
	w := env.do(t, http.MethodPost, "/api/v1/upload", body, ct)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decode(t, w)["code"])

	files, err := env.uploads.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestBusySlotLifecycle(t *testing.T) {
	pipe := &gatedPipeline{started: make(chan string, 1), release: make(chan struct{})}
	env := newEnv(t, pipe, Config{})

	w := env.upload(t, "first.mp4")
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["job_id"].(string)

	select {
	case <-pipe.started:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not start")
	}

	// Second upload is refused while the first holds the slot.
	w = env.upload(t, "second.mp4")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, busyRetryAfter, w.Header().Get("Retry-After"))
	busy := decode(t, w)
	assert.Equal(t, "SERVER_BUSY", busy["code"])
	assert.Equal(t, id, busy["current_job_id"])
	assert.Contains(t, busy["detail"], id)

	w = env.do(t, http.MethodGet, "/api/v1/status/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, "processing", status["status"])
	assert.Equal(t, true, status["is_currently_processing"])
	assert.Contains(t, status, "processing_duration")

	w = env.do(t, http.MethodGet, "/api/v1/download/"+id, nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Job not completed. Current status: processing", decode(t, w)["detail"])

	w = env.do(t, http.MethodDelete, "/api/v1/job/"+id, nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "JOB_BUSY", decode(t, w)["code"])

	w = env.do(t, http.MethodGet, "/api/v1/server/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	srv := decode(t, w)
	assert.Equal(t, "running", srv["server_status"])
	assert.Equal(t, id, srv["processing_lock"].(map[string]any)["current_job_id"])

	close(pipe.release)
	env.wait(t, id)

	w = env.do(t, http.MethodDelete, "/api/v1/job/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	del := decode(t, w)
	assert.Equal(t, "Job "+id+" deleted successfully", del["message"])
	report := del["cleanup_results"].(map[string]any)
	assert.Equal(t, true, report["upload_deleted"])
	assert.Equal(t, true, report["output_deleted"])
	assert.Equal(t, true, report["job_removed"])

	w = env.do(t, http.MethodGet, "/api/v1/status/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decode(t, w)["code"])

	w = env.do(t, http.MethodDelete, "/api/v1/job/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownload_ArtifactMissing(t *testing.T) {
	env := newEnv(t, &gatedPipeline{}, Config{})

	w := env.upload(t, "clip.mp4")
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["job_id"].(string)
	env.wait(t, id)

	job, ok := env.orch.Registry().Get(id)
	require.True(t, ok)
	_, err := env.outputs.Delete(job.OutputFilename)
	require.NoError(t, err)

	w = env.do(t, http.MethodGet, "/api/v1/download/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ARTIFACT_NOT_FOUND", decode(t, w)["code"])

	w = env.do(t, http.MethodGet, "/api/v1/download/unknown1", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decode(t, w)["code"])
}

func TestCleanupEndpoint(t *testing.T) {
	env := newEnv(t, &gatedPipeline{}, Config{})

	stale := filepath.Join(env.uploads.Dir(), "stale.mp4")
	require.NoError(t, os.WriteFile(stale, []byte("12345"), 0o600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	w := env.do(t, http.MethodPost, "/api/v1/cleanup/old-files", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Cleanup completed", body["message"])
	res := body["results"].(map[string]any)
	assert.Equal(t, float64(1), res["upload_files_deleted"])
	assert.Equal(t, float64(5), res["total_size_freed"])
	assert.NoFileExists(t, stale)
}

func TestRouting_ProblemsAndProbes(t *testing.T) {
	env := newEnv(t, &gatedPipeline{}, Config{})

	w := env.do(t, http.MethodGet, "/api/v1/nope", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])

	w = env.do(t, http.MethodGet, "/api/v1/upload", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = env.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadRateLimit(t *testing.T) {
	env := newEnv(t, &gatedPipeline{}, Config{RateLimitUploadRequests: 1, RateLimitWindow: time.Minute})

	w := env.upload(t, "bad.txt")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.upload(t, "bad.txt")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode(t, w)["code"])

	// Read routes are not subject to the upload limit.
	w = env.do(t, http.MethodGet, "/api/v1/jobs", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
