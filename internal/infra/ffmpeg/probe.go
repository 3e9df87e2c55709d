package ffmpeg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultFPS is used when the video stream carries no usable frame rate.
const DefaultFPS = 30

// ErrNoVideoStream means ffprobe found no stream with codec_type=video.
var ErrNoVideoStream = errors.New("no video stream found")

// ProbeInfo is what the pipeline needs to know about an input file.
type ProbeInfo struct {
	Duration  float64 // seconds
	Width     int
	Height    int
	FPS       int
	Codec     string
	Container string
	Size      int64 // bytes; zero when ffprobe did not report it
}

// ProbeArgs returns the ffprobe argv for path.
func ProbeArgs(bin, path string) []string {
	return []string{
		bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(out []byte) (ProbeInfo, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return ProbeInfo{}, fmt.Errorf("json decode: %w", err)
	}

	var video *probeStream
	for i := range data.Streams {
		if data.Streams[i].CodecType == "video" {
			video = &data.Streams[i]
			break
		}
	}
	if video == nil {
		return ProbeInfo{}, ErrNoVideoStream
	}

	info := ProbeInfo{
		Width:  video.Width,
		Height: video.Height,
		FPS:    parseFrameRate(video.RFrameRate),
		Codec:  video.CodecName,
	}

	// Format duration first, stream duration as fallback.
	info.Duration = parseFloat(data.Format.Duration)
	if info.Duration <= 0 {
		info.Duration = parseFloat(video.Duration)
	}

	if s, err := strconv.ParseInt(strings.TrimSpace(data.Format.Size), 10, 64); err == nil {
		info.Size = s
	}

	// format_name is a comma list ("mov,mp4,m4a,3gp,3g2,mj2"); keep the first token.
	if name, _, _ := strings.Cut(data.Format.FormatName, ","); name != "" {
		info.Container = strings.TrimSpace(name)
	}

	return info, nil
}

// parseFrameRate reduces an ffprobe rational ("30000/1001") to an integer
// frame rate, truncating. Missing or degenerate values yield DefaultFPS.
func parseFrameRate(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultFPS
	}
	var fps float64
	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return DefaultFPS
		}
		fps = n / d
	} else {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return DefaultFPS
		}
		fps = f
	}
	if fps < 1 || math.IsInf(fps, 0) || math.IsNaN(fps) {
		return DefaultFPS
	}
	return int(fps)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	RFrameRate string `json:"r_frame_rate,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

type probeData struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
		Size       string `json:"size"`
	} `json:"format"`
}
