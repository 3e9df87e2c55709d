package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeName is returned for names that would resolve outside the storage root.
var ErrUnsafeName = errors.New("unsafe file name")

// confine resolves name beneath root. name must be a single path element:
// no separators, no backslashes, no "..". Symlinks that escape root are rejected.
func confine(root, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve storage root: %w", err)
	}
	full := filepath.Join(realRoot, name)

	realPath := full
	if info, err := os.Lstat(full); err == nil && info.Mode()&os.ModeSymlink != 0 {
		rp, err := filepath.EvalSymlinks(full)
		if err != nil {
			// Fail closed on dangling or looping links.
			return "", fmt.Errorf("%w: resolve symlink: %v", ErrUnsafeName, err)
		}
		realPath = rp
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes storage root", ErrUnsafeName, name)
	}
	return full, nil
}
