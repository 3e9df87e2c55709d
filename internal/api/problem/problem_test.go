package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/speedup/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_Body(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/abc", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-1"))
	w := httptest.NewRecorder()

	Write(w, req, http.StatusNotFound, "jobs/not_found", "Not Found", "JOB_NOT_FOUND", "Job not found",
		map[string]any{"job_id": "abc", "status": 500})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "jobs/not_found", body["type"])
	assert.Equal(t, "Not Found", body["title"])
	assert.Equal(t, float64(404), body["status"], "reserved keys are not overridden by extras")
	assert.Equal(t, "JOB_NOT_FOUND", body["code"])
	assert.Equal(t, "Job not found", body["detail"])
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, "/api/v1/status/abc", body["instance"])
	assert.Equal(t, "abc", body["job_id"])
}

func TestWrite_RequestIDFromHeader(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(HeaderRequestID, "hdr-9")
	Write(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusBadRequest, "t", "Bad Request", "BAD", "", nil)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "hdr-9", body["request_id"])
	_, hasDetail := body["detail"]
	assert.False(t, hasDetail)
}
