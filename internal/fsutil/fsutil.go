// Package fsutil provides small filesystem helpers shared by fileio,
// engine, taskstore and the demo CLI: atomic writes, workspace-relative path
// resolution and the workspace-escape check.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath resolves requestedPath (absolute or relative to workspace)
// to a cleaned absolute path. Unlike the teacher's ValidatePath, escaping
// the workspace is only rejected by the caller (fileio.Read, via Escapes), per spec.md §4.3:
// "refuse if path escapes the workspace only when code_writer mode with
// restricted globs is active (else allow)".
func ResolvePath(workspace, requestedPath string) string {
	if filepath.IsAbs(requestedPath) {
		return filepath.Clean(requestedPath)
	}
	return filepath.Clean(filepath.Join(workspace, requestedPath))
}

// Escapes reports whether abs is outside workspace.
func Escapes(workspace, abs string) bool {
	rel, err := filepath.Rel(workspace, abs)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// AtomicWrite writes content to targetPath atomically using a temp file in
// the same directory followed by a rename, so a crash mid-write never
// leaves a partially-written target. Mirrors tools/pathutil.go's AtomicWrite.
func AtomicWrite(targetPath string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(targetPath)
	tmp, err := os.CreateTemp(dir, ".wcgwcore-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	tmpPath = ""
	return nil
}
