// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPipelineTimeout means the overall processing deadline expired.
	ErrPipelineTimeout = errors.New("video processing timed out")

	// ErrCanceled means the caller's context ended (e.g. process shutdown).
	ErrCanceled = errors.New("video processing canceled")
)

// StageError reports a stage that did not complete. ExitCode is -1 when the
// process was killed or never started; Err then carries the cause.
type StageError struct {
	Index    int
	Name     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "step %d (%s) failed", e.Index, e.Name)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if tail := stderrTail(e.Stderr, stderrTailLines); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	}
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// stderrTailLines bounds how much ffmpeg output ends up in a job error.
const stderrTailLines = 5

// stderrTail joins the last n non-empty lines of s. ffmpeg usually prints
// the cause a few lines above its final summary line.
func stderrTail(s string, n int) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
