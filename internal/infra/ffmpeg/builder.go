// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// Builder assembles an ffmpeg argv in call order.
type Builder struct {
	args []string
}

// NewBuilder starts an argv with the binary and -y (overwrite outputs).
func NewBuilder(bin string) *Builder {
	return &Builder{args: []string{bin, "-y"}}
}

func (b *Builder) add(args ...string) *Builder {
	b.args = append(b.args, args...)
	return b
}

// Input adds a file input.
func (b *Builder) Input(path string) *Builder { return b.add("-i", path) }

// LavfiInput adds a libavfilter virtual input such as color= or anullsrc=.
func (b *Builder) LavfiInput(source string) *Builder { return b.add("-f", "lavfi", "-i", source) }

// Duration limits the output duration in seconds.
func (b *Builder) Duration(seconds float64) *Builder { return b.add("-t", formatFloat(seconds)) }

// VideoFilter sets a simple video filter chain.
func (b *Builder) VideoFilter(f string) *Builder { return b.add("-filter:v", f) }

// AudioFilter sets a simple audio filter chain.
func (b *Builder) AudioFilter(f string) *Builder { return b.add("-filter:a", f) }

// FilterComplex sets a filtergraph.
func (b *Builder) FilterComplex(graph string) *Builder { return b.add("-filter_complex", graph) }

// Map selects a stream or filtergraph label for the output.
func (b *Builder) Map(spec string) *Builder { return b.add("-map", spec) }

// Encode sets video and audio codecs.
func (b *Builder) Encode(enc Encoding) *Builder {
	return b.add("-c:v", enc.VideoCodec, "-c:a", enc.AudioCodec)
}

// Preset sets the encoder preset; empty is skipped.
func (b *Builder) Preset(p string) *Builder {
	if p == "" {
		return b
	}
	return b.add("-preset", p)
}

// FrameRate sets the output frame rate.
func (b *Builder) FrameRate(fps int) *Builder { return b.add("-r", strconv.Itoa(fps)) }

// Shortest ends the output with the shortest input.
func (b *Builder) Shortest() *Builder { return b.add("-shortest") }

// MovFlags sets MP4 muxer flags.
func (b *Builder) MovFlags(flags string) *Builder { return b.add("-movflags", flags) }

// Output appends the output path and returns the finished argv.
func (b *Builder) Output(path string) []string {
	out := make([]string, 0, len(b.args)+1)
	out = append(out, b.args...)
	return append(out, path)
}

// Encoding fixes the codecs and preset of every stage.
type Encoding struct {
	VideoCodec string
	AudioCodec string
	Preset     string
}

// SpeedTrim describes stage 1.
type SpeedTrim struct {
	Input       string
	Output      string
	Speed       float64
	NewDuration float64 // seconds, already trimmed
}

// SpeedTrimArgs re-times video and audio by Speed and cuts the result at NewDuration.
func SpeedTrimArgs(bin string, s SpeedTrim, enc Encoding) []string {
	speed := formatFloat(s.Speed)
	return NewBuilder(bin).
		Input(s.Input).
		Duration(s.NewDuration).
		VideoFilter("setpts=PTS/" + speed).
		AudioFilter("atempo=" + speed).
		Encode(enc).
		Preset(enc.Preset).
		Output(s.Output)
}

// Outro describes stage 2: a solid colour clip with centred text and silent
// stereo audio, matched to the main clip's geometry and frame rate.
type Outro struct {
	Output   string
	Width    int
	Height   int
	FPS      int
	Duration float64 // seconds
	Color    string
	Text     string
	FontFile string
}

// OutroFontSize scales the text with the shorter side, never below 22.
func OutroFontSize(width, height int) int {
	return max(22, min(width, height)/25)
}

// OutroArgs synthesises the outro clip.
func OutroArgs(bin string, o Outro, enc Encoding) []string {
	d := formatFloat(o.Duration)
	color := fmt.Sprintf("color=c=%s:s=%dx%d:d=%s", o.Color, o.Width, o.Height, d)
	silence := "anullsrc=channel_layout=stereo:sample_rate=44100:duration=" + d

	var text strings.Builder
	text.WriteString("[0:v]drawtext=")
	if o.FontFile != "" {
		text.WriteString("fontfile=" + escapeFilterValue(o.FontFile) + ":")
	}
	fmt.Fprintf(&text, "text=%s:fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=(h-text_h)/2[v]",
		escapeFilterValue(o.Text), OutroFontSize(o.Width, o.Height))

	return NewBuilder(bin).
		LavfiInput(color).
		LavfiInput(silence).
		FilterComplex(text.String()).
		Map("[v]").
		Map("1:a").
		Encode(enc).
		FrameRate(o.FPS).
		Shortest().
		Output(o.Output)
}

// ConcatArgs joins the main clip and the outro, re-encoding both, with the
// moov atom moved to the front for progressive playback.
func ConcatArgs(bin, first, second, output string, enc Encoding) []string {
	return NewBuilder(bin).
		Input(first).
		Input(second).
		FilterComplex("[0:v][0:a][1:v][1:a]concat=n=2:v=1:a=1[outv][outa]").
		Map("[outv]").
		Map("[outa]").
		Encode(enc).
		Preset(enc.Preset).
		MovFlags("+faststart").
		Output(output)
}

// formatFloat renders the shortest exact decimal ("1.001", "12.475", "1.5").
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeFilterValue escapes characters that delimit filtergraph options.
func escapeFilterValue(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		`,`, `\,`,
		`;`, `\;`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return r.Replace(s)
}
