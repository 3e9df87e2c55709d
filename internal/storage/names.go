// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	// TokenLength is the number of UUID characters prefixed to stored uploads.
	TokenLength = 8

	outputSuffix   = "_speedup"
	outputExt      = ".mp4"
	maxNameRunes   = 120
	fallbackUpload = "upload"
)

// SanitizeFilename reduces a client supplied filename to a safe single path
// element. Directory parts are dropped, the name is NFC normalised, control
// characters and separators are removed, whitespace becomes '_'.
func SanitizeFilename(name string) string {
	// Clients send both separators regardless of platform.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = norm.NFC.String(name)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		case unicode.IsControl(r), r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			continue
		}
		b.WriteRune(r)
		lastUnderscore = r == '_'
	}

	out := strings.TrimLeft(b.String(), "._")
	if runes := []rune(out); len(runes) > maxNameRunes {
		ext := filepath.Ext(out)
		keep := max(maxNameRunes-len([]rune(ext)), 1)
		out = string([]rune(strings.TrimSuffix(out, ext))[:keep]) + ext
	}
	if strings.TrimSuffix(out, filepath.Ext(out)) == "" {
		out = fallbackUpload + filepath.Ext(out)
	}
	return out
}

// NewToken returns a short random token derived from a UUID.
func NewToken() string {
	return uuid.NewString()[:TokenLength]
}

// UniqueName returns "<token>_<sanitized name>", used as the stored upload name.
func UniqueName(original string) string {
	return NewToken() + "_" + SanitizeFilename(original)
}

// OutputName derives the artifact name from a stored upload name. The
// artifact is always MP4 regardless of the input container.
func OutputName(uploadName string) string {
	return strings.TrimSuffix(uploadName, filepath.Ext(uploadName)) + outputSuffix + outputExt
}

// DownloadName is the filename offered to clients: "speedup_<original stem>.mp4".
func DownloadName(originalFilename string) string {
	base := SanitizeFilename(originalFilename)
	return "speedup_" + strings.TrimSuffix(base, filepath.Ext(base)) + outputExt
}
