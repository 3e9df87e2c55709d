// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/speedup/internal/infra/ffmpeg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) Run(ctx context.Context, argv []string, timeout time.Duration) (ffmpeg.Result, error) {
	args := m.Called(ctx, argv, timeout)
	return args.Get(0).(ffmpeg.Result), args.Error(1)
}

func probeJSON(duration string) []byte {
	return []byte(`{"streams":[{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"r_frame_rate":"30/1"}],
"format":{"duration":"` + duration + `","format_name":"mov,mp4,m4a,3gp,3g2,mj2","size":"2048"}}`)
}

func testConfig() Config {
	return Config{
		FFprobeBin:        "ffprobe",
		AllowedExtensions: []string{".mp4", ".mov", ".avi", ".mkv"},
		MaxFileSize:       100 << 20,
		MinDuration:       time.Second,
		MaxDuration:       65 * time.Second,
		ProbeTimeout:      30 * time.Second,
	}
}

func writeFile(t *testing.T, size int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "abcd1234_clip.mp4")
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o600))
	return p
}

func TestInspect_Success(t *testing.T) {
	path := writeFile(t, 10)
	r := &mockRunner{}
	r.On("Run", mock.Anything, ffmpeg.ProbeArgs("ffprobe", path), 30*time.Second).
		Return(ffmpeg.Result{Stdout: probeJSON("12.5")}, nil).Once()

	info, err := NewInspector(testConfig(), r).Inspect(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, MediaInfo{Duration: 12.5, Width: 1920, Height: 1080, FPS: 30, Codec: "h264", Format: "mov", Size: 2048}, info)
	r.AssertExpectations(t)
}

func TestInspect_SizeFallsBackToStat(t *testing.T) {
	path := writeFile(t, 77)
	r := &mockRunner{}
	r.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(ffmpeg.Result{Stdout: []byte(`{"streams":[{"codec_type":"video"}],"format":{"duration":"2"}}`)}, nil)

	info, err := NewInspector(testConfig(), r).Inspect(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(77), info.Size)
	assert.Equal(t, ffmpeg.DefaultFPS, info.FPS)
}

func TestInspect_Errors(t *testing.T) {
	tests := []struct {
		name string
		res  ffmpeg.Result
		err  error
		want error
	}{
		{"timeout", ffmpeg.Result{ExitCode: -1}, ffmpeg.ErrTimeout, ErrProbeTimeout},
		{"start failure", ffmpeg.Result{}, ffmpeg.ErrStart, ErrProbeFailed},
		{"non-zero exit", ffmpeg.Result{ExitCode: 1, Stderr: "moov atom not found"}, nil, ErrProbeFailed},
		{"bad json", ffmpeg.Result{Stdout: []byte("{")}, nil, ErrProbeFailed},
		{"no video", ffmpeg.Result{Stdout: []byte(`{"streams":[{"codec_type":"audio"}],"format":{}}`)}, nil, ErrNoVideoStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &mockRunner{}
			r.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(tt.res, tt.err)

			_, err := NewInspector(testConfig(), r).Inspect(context.Background(), "/x.mp4")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_OrderedChecks(t *testing.T) {
	okPath := writeFile(t, 10)

	tests := []struct {
		name     string
		path     string
		filename string
		cfg      func(*Config)
		probe    []byte
		wantKind ValidationKind
	}{
		{name: "missing filename", path: okPath, filename: " ", wantKind: KindMissingFilename},
		{name: "bad extension wins over missing file", path: "/does/not/exist", filename: "notes.txt", wantKind: KindUnsupportedType},
		{name: "missing file", path: "/does/not/exist.mp4", filename: "clip.mp4", wantKind: KindFileNotFound},
		{name: "too large", path: okPath, filename: "clip.MP4", cfg: func(c *Config) { c.MaxFileSize = 5 }, wantKind: KindFileTooLarge},
		{name: "invalid media", path: okPath, filename: "clip.mov", probe: []byte("garbage"), wantKind: KindInvalidMedia},
		{name: "too short", path: okPath, filename: "clip.mkv", probe: probeJSON("0.5"), wantKind: KindDurationOutOfRange},
		{name: "too long", path: okPath, filename: "clip.avi", probe: probeJSON("65.01"), wantKind: KindDurationOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			r := &mockRunner{}
			if tt.probe != nil {
				r.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(ffmpeg.Result{Stdout: tt.probe}, nil)
			}

			_, err := NewInspector(cfg, r).Validate(context.Background(), tt.path, tt.filename)
			ve, ok := AsValidation(err)
			require.True(t, ok, "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantKind, ve.Kind)
			assert.ErrorIs(t, err, &ValidationError{Kind: tt.wantKind})
			if tt.probe == nil {
				r.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestValidate_BoundaryDurationsAccepted(t *testing.T) {
	path := writeFile(t, 10)
	for _, d := range []string{"1", "65"} {
		r := &mockRunner{}
		r.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(ffmpeg.Result{Stdout: probeJSON(d)}, nil)

		info, err := NewInspector(testConfig(), r).Validate(context.Background(), path, "clip.mp4")
		require.NoError(t, err, d)
		assert.Equal(t, 1920, info.Width)
	}
}

func TestValidate_InvalidMediaKeepsCause(t *testing.T) {
	path := writeFile(t, 10)
	r := &mockRunner{}
	r.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(ffmpeg.Result{ExitCode: -1}, ffmpeg.ErrTimeout)

	_, err := NewInspector(testConfig(), r).Validate(context.Background(), path, "clip.mp4")
	assert.ErrorIs(t, err, ErrInvalidMedia)
	assert.ErrorIs(t, err, ErrProbeTimeout)
	assert.Equal(t, "Video analysis timed out", err.Error())
}

func TestValidationError_Messages(t *testing.T) {
	i := NewInspector(testConfig(), &mockRunner{})
	err := i.CheckExtension("x.webm")
	assert.Equal(t, "Unsupported file type. Allowed: .mp4, .mov, .avi, .mkv", err.Error())
	assert.NoError(t, i.CheckExtension("dir/Clip.MKV"))

	assert.False(t, errors.Is(ErrFileTooLarge, ErrFileNotFound))
	assert.Equal(t, "1", formatSeconds(1))
	assert.Equal(t, "1.5", formatSeconds(1.5))
}
