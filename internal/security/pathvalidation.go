// Package security restricts where user supplied output paths may point.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned for a path that resolves outside every
// allowed directory.
var ErrOutsideAllowed = errors.New("security: path outside allowed directories")

// canonical resolves symlinks in path. When path does not exist yet the
// nearest existing ancestor is resolved and the remainder re-attached, so a
// symlinked parent cannot smuggle a new file elsewhere.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	for dir := abs; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// WithinDirectory reports an error unless path resolves inside dir.
func WithinDirectory(path, dir string) error {
	p, err := canonical(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	d, err := canonical(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s escapes %s", ErrOutsideAllowed, path, dir)
	}
	return nil
}

// WithinAny accepts path if it lies inside at least one of dirs.
func WithinAny(path string, dirs ...string) error {
	for _, d := range dirs {
		if WithinDirectory(path, d) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not under %v", ErrOutsideAllowed, path, dirs)
}

// ExportPath validates a report output path against the working directory
// and the temp directory and returns it cleaned.
func ExportPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty export path")
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := WithinAny(path, cwd, os.TempDir()); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}
