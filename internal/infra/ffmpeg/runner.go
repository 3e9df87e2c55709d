// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg runs ffmpeg and ffprobe as child processes and builds their
// argument vectors.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/speedup/internal/procgroup"
	"github.com/rs/zerolog"
)

var (
	// ErrTimeout means the per-invocation timeout expired and the process was killed.
	ErrTimeout = errors.New("process timed out")
	// ErrStart means the process could not be started (missing binary, permissions).
	ErrStart = errors.New("process start failed")
)

// Result is the outcome of a process that ran to completion.
type Result struct {
	Stdout   []byte
	Stderr   string // tail only, see ExecRunner.StderrLines
	ExitCode int
	Duration time.Duration
}

// Runner executes argv[0] with argv[1:]. A non-zero exit is reported through
// Result.ExitCode, not as an error. Errors are ErrStart, ErrTimeout or the
// parent context's error.
type Runner interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error)
}

const (
	defaultKillGrace   = 2 * time.Second
	defaultStderrLines = 100
)

// ExecRunner runs processes in their own process group so a timeout kills
// ffmpeg and anything it spawned.
type ExecRunner struct {
	Logger zerolog.Logger
	// KillGrace is the SIGTERM to SIGKILL window on cancellation.
	KillGrace time.Duration
	// StderrLines bounds the captured stderr tail.
	StderrLines int
}

// NewExecRunner returns an ExecRunner with default limits.
func NewExecRunner(logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{
		Logger:      logger,
		KillGrace:   defaultKillGrace,
		StderrLines: defaultStderrLines,
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("%w: empty argv", ErrStart)
	}

	runCtx := ctx
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	lines := r.StderrLines
	if lines <= 0 {
		lines = defaultStderrLines
	}
	ring := NewRingBuffer(lines)
	stderr := &lineWriter{ring: ring}
	var stdout bytes.Buffer

	// #nosec G204 -- argv is produced by the typed builders in this package
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	procgroup.Set(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrStart, argv[0], err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-runCtx.Done():
		grace := r.KillGrace
		if grace <= 0 {
			grace = defaultKillGrace
		}
		r.Logger.Warn().
			Str("bin", argv[0]).
			Int("pid", cmd.Process.Pid).
			Err(runCtx.Err()).
			Msg("terminating process group")
		_ = procgroup.Terminate(cmd, waitCh, grace)
		stderr.Flush()

		res := Result{Stderr: ring.String(), ExitCode: -1, Duration: time.Since(start)}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, ErrTimeout
	}
	stderr.Flush()

	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   ring.String(),
		Duration: time.Since(start),
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, fmt.Errorf("wait %s: %w", argv[0], waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	r.Logger.Debug().
		Str("bin", argv[0]).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration).
		Msg("process finished")
	return res, nil
}

// lineWriter splits a byte stream into lines for the ring buffer.
type lineWriter struct {
	ring *RingBuffer
	buf  []byte
}

var _ io.Writer = (*lineWriter)(nil)

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		// ffmpeg progress lines end in \r
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(w.buf[:i])); line != "" {
			w.ring.Add(line)
		}
		w.buf = w.buf[i+1:]
	}
	// Guard against a single unterminated line growing without bound.
	if len(w.buf) > 64<<10 {
		w.ring.Add(string(w.buf))
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

// Flush moves any unterminated trailing line into the ring.
func (w *lineWriter) Flush() {
	if line := strings.TrimSpace(string(w.buf)); line != "" {
		w.ring.Add(line)
	}
	w.buf = w.buf[:0]
}

// RingBuffer keeps the last N lines.
type RingBuffer struct {
	lines []string
	pos   int
	full  bool
	mu    sync.Mutex
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{lines: make([]string, size)}
}

func (r *RingBuffer) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	if r.pos == 0 {
		r.full = true
	}
}

// GetAll returns the buffered lines, oldest first.
func (r *RingBuffer) GetAll() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.pos]...)
	}
	res := make([]string, len(r.lines))
	copy(res, r.lines[r.pos:])
	copy(res[len(r.lines)-r.pos:], r.lines[:r.pos])
	return res
}

// String joins the buffered lines with newlines.
func (r *RingBuffer) String() string {
	return strings.Join(r.GetAll(), "\n")
}
