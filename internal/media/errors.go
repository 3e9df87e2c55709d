// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"errors"

	"github.com/ManuGH/speedup/internal/infra/ffmpeg"
)

// Probe failures. Validate wraps these in a ValidationError of kind InvalidMedia.
var (
	ErrProbeTimeout  = errors.New("video analysis timed out")
	ErrProbeFailed   = errors.New("failed to analyze video")
	ErrNoVideoStream = ffmpeg.ErrNoVideoStream
)

// ValidationKind enumerates why an upload was refused.
type ValidationKind string

const (
	KindMissingFilename    ValidationKind = "missing_filename"
	KindUnsupportedType    ValidationKind = "unsupported_type"
	KindFileNotFound       ValidationKind = "file_not_found"
	KindFileTooLarge       ValidationKind = "file_too_large"
	KindInvalidMedia       ValidationKind = "invalid_media"
	KindDurationOutOfRange ValidationKind = "duration_out_of_range"
)

// Sentinels for errors.Is against a kind.
var (
	ErrMissingFilename    = &ValidationError{Kind: KindMissingFilename}
	ErrUnsupportedType    = &ValidationError{Kind: KindUnsupportedType}
	ErrFileNotFound       = &ValidationError{Kind: KindFileNotFound}
	ErrFileTooLarge       = &ValidationError{Kind: KindFileTooLarge}
	ErrInvalidMedia       = &ValidationError{Kind: KindInvalidMedia}
	ErrDurationOutOfRange = &ValidationError{Kind: KindDurationOutOfRange}
)

// ValidationError is a client-facing rejection. Detail is safe to return to
// the caller; Err carries the underlying cause, if any.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return string(e.Kind)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is matches any ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// AsValidation extracts a ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
