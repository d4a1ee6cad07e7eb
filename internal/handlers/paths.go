package handlers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// jobTempDir mirrors utils/paths.py's BASE_TEMP_DIR/<job_id> layout, rooted
// under the configured TempDirRoot (defaulting to <os.TempDir()>/truetrack
// when unset).
func (h *Handlers) jobTempDir(jobID string) string {
	root := h.deps.TempDirRoot
	if root == "" {
		root = filepath.Join(os.TempDir(), "truetrack")
	}
	return filepath.Join(root, jobID)
}

// ensureFreshDir deletes dir if it exists and recreates it empty, per
// spec.md §4.3 DOWNLOADING / §9 "Temp-dir atomicity": each step that uses
// the temp dir gets a wiped workspace, never an appended-to one.
func ensureFreshDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("wipe temp dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	return nil
}

// sanitizeFilename strips characters disallowed on common filesystems,
// matching spec.md §4.3 STORING: replace `< > : " / \ | ? *` with nothing,
// then trim.
func sanitizeFilename(name string) string {
	invalid := []rune{'<', '>', ':', '"', '/', '\\', '|', '?', '*'}
	result := []rune(name)
	filtered := make([]rune, 0, len(result))
	for _, r := range result {
		keep := true
		for _, bad := range invalid {
			if r == bad {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, r)
		}
	}
	return strings.TrimSpace(string(filtered))
}

// moveFile renames src to dst, falling back to a copy-then-remove when the
// two paths live on different filesystems (temp dirs and the library root
// commonly do).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
