package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// pathValidator confines tool-supplied file paths to the configured input
// directory. MCP clients pass arbitrary strings; without this a client could
// point the pipeline at any file the process can read.
type pathValidator struct {
	baseDir string
}

func newPathValidator(baseDir string) (*pathValidator, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return &pathValidator{baseDir: abs}, nil
}

// Resolve normalizes a tool-supplied path and rejects anything outside the
// base directory. Relative paths are taken relative to the base directory.
func (v *pathValidator) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	path = strings.ReplaceAll(path, "\x00", "")

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.baseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	clean := filepath.Clean(abs)

	// Symlinks could still point outside; compare the real locations.
	real := clean
	if resolved, err := filepath.EvalSymlinks(clean); err == nil {
		real = resolved
	}
	realBase := v.baseDir
	if resolved, err := filepath.EvalSymlinks(v.baseDir); err == nil {
		realBase = resolved
	}

	if !within(clean, v.baseDir) && !within(real, realBase) {
		return "", fmt.Errorf("path is outside the configured directory: %s", path)
	}
	if _, err := os.Stat(clean); err != nil {
		return "", fmt.Errorf("cannot access %s: %w", clean, err)
	}
	return clean, nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
