// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the service.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Job attributes
	JobIDKey     = "job.id"
	JobStatusKey = "job.status"

	// Media attributes
	MediaCodecKey      = "media.codec"
	MediaResolutionKey = "media.resolution"
	MediaFPSKey        = "media.fps"
	MediaDurationKey   = "media.duration_s"

	// Pipeline attributes
	StageIndexKey    = "pipeline.stage_index"
	StageNameKey     = "pipeline.stage"
	StageExitCodeKey = "pipeline.exit_code"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// JobAttributes creates job-related span attributes. Empty values are omitted.
func JobAttributes(jobID, status string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if jobID != "" {
		attrs = append(attrs, attribute.String(JobIDKey, jobID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(JobStatusKey, status))
	}
	return attrs
}

// MediaAttributes describes the probed input of a pipeline run.
func MediaAttributes(codec string, width, height, fps int, durationSec float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MediaCodecKey, codec),
		attribute.String(MediaResolutionKey, fmt.Sprintf("%dx%d", width, height)),
		attribute.Int(MediaFPSKey, fps),
		attribute.Float64(MediaDurationKey, durationSec),
	}
}

// StageAttributes identifies one ffmpeg invocation of the pipeline.
func StageAttributes(index int, name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(StageIndexKey, index),
		attribute.String(StageNameKey, name),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
