package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newTestRunner() *ExecRunner {
	r := NewExecRunner(zerolog.Nop())
	r.KillGrace = 200 * time.Millisecond
	return r
}

func TestExecRunner_Success(t *testing.T) {
	requireShell(t)

	res, err := newTestRunner().Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err", res.Stderr)
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	requireShell(t)

	res, err := newTestRunner().Run(context.Background(), []string{"sh", "-c", "echo boom >&2; exit 3"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stderr, "boom")
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)

	start := time.Now()
	res, err := newTestRunner().Run(context.Background(), []string{"sh", "-c", "sleep 30"}, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecRunner_ParentCancel(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := newTestRunner().Run(ctx, []string{"sh", "-c", "sleep 30"}, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestExecRunner_StartFailure(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), []string{"/nonexistent/ffmpeg-binary"}, time.Second)
	assert.ErrorIs(t, err, ErrStart)

	_, err = newTestRunner().Run(context.Background(), nil, time.Second)
	assert.ErrorIs(t, err, ErrStart)
}

func TestExecRunner_StderrTailBounded(t *testing.T) {
	requireShell(t)

	r := newTestRunner()
	r.StderrLines = 3
	res, err := r.Run(context.Background(), []string{"sh", "-c", "for i in 1 2 3 4 5; do echo line$i >&2; done"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"line3", "line4", "line5"}, strings.Split(res.Stderr, "\n"))
}

func TestRingBuffer(t *testing.T) {
	r := NewRingBuffer(2)
	assert.Empty(t, r.GetAll())
	r.Add("a")
	assert.Equal(t, []string{"a"}, r.GetAll())
	r.Add("b")
	r.Add("c")
	assert.Equal(t, []string{"b", "c"}, r.GetAll())
	assert.Equal(t, "b\nc", r.String())
}

func TestLineWriter_CarriageReturns(t *testing.T) {
	ring := NewRingBuffer(10)
	w := &lineWriter{ring: ring}
	_, _ = w.Write([]byte("frame=1\rframe=2\rpartial"))
	assert.Equal(t, []string{"frame=1", "frame=2"}, ring.GetAll())
	w.Flush()
	assert.Equal(t, []string{"frame=1", "frame=2", "partial"}, ring.GetAll())
}
