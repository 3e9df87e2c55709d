// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package storage keeps uploads and artifacts on local disk. Each Local
// instance owns one flat directory; all names are single path elements.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a named file does not exist.
var ErrNotFound = errors.New("file not found")

// FileInfo describes one stored file.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
}

// Local is a directory-backed store.
type Local struct {
	dir    string
	logger zerolog.Logger
}

// NewLocal creates dir (0755) if needed and returns a store rooted there.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", abs, err)
	}
	return &Local{
		dir:    abs,
		logger: xglog.WithComponent("storage").With().Str(xglog.FieldPath, abs).Logger(),
	}, nil
}

// Dir returns the absolute root directory.
func (l *Local) Dir() string { return l.dir }

// Path resolves name to an absolute path confined to the root.
func (l *Local) Path(name string) (string, error) {
	return confine(l.dir, name)
}

// Save streams r into name atomically: readers never observe a partial file.
// It returns the number of bytes written.
func (l *Local) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	path, err := l.Path(name)
	if err != nil {
		return 0, err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			l.logger.Debug().Err(err).Str(xglog.FieldFilename, name).Msg("cleanup pending file")
		}
	}()

	n, err := io.Copy(pending, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return n, fmt.Errorf("write %s: %w", name, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return n, fmt.Errorf("commit %s: %w", name, err)
	}
	return n, nil
}

// Exists reports whether name is an existing regular file.
func (l *Local) Exists(name string) bool {
	_, err := l.Stat(name)
	return err == nil
}

// Size returns the byte size of name.
func (l *Local) Size(name string) (int64, error) {
	fi, err := l.Stat(name)
	if err != nil {
		return 0, err
	}
	return fi.Size, nil
}

// Stat describes name. Directories and other non-regular files are reported as ErrNotFound.
func (l *Local) Stat(name string) (FileInfo, error) {
	path, err := l.Path(name)
	if err != nil {
		return FileInfo{}, err
	}
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !fi.Mode().IsRegular()) {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Delete removes name. It reports false without error when nothing existed.
func (l *Local) Delete(name string) (bool, error) {
	path, err := l.Path(name)
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("delete %s: %w", name, err)
	}
}

// Glob returns the names of regular files matching pattern (filepath.Match syntax).
func (l *Local) Glob(pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	files, err := l.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		if ok, _ := filepath.Match(pattern, f.Name); ok {
			out = append(out, f.Name)
		}
	}
	return out, nil
}

// List returns every regular file in the directory, sorted by name.
// Dot files (including in-flight Save temp files) are skipped.
func (l *Local) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.dir, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, FileInfo{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
