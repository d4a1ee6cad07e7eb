package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

// Extracting stashes the downloaded file outside the temp dir, wipes and
// recreates the temp dir (giving the step an empty workspace without
// losing its input — see spec.md §9 "Temp-dir atomicity"), restores the
// file, and transcodes it to MP3.
func (h *Handlers) Extracting(ctx context.Context, j *job.Job) error {
	if j.DownloadedFile == "" {
		return state.NewError("NO_FILE", state.Content, "no downloaded file to extract")
	}

	stashDir, err := os.MkdirTemp("", "truetrack-stash-*")
	if err != nil {
		return fmt.Errorf("extracting: stash dir: %w", err)
	}
	defer os.RemoveAll(stashDir)

	base := filepath.Base(j.DownloadedFile)
	stashedPath := filepath.Join(stashDir, base)
	if err := os.Rename(j.DownloadedFile, stashedPath); err != nil {
		return fmt.Errorf("extracting: stash input: %w", err)
	}

	tempDir := h.jobTempDir(j.JobID)
	if err := ensureFreshDir(tempDir); err != nil {
		return fmt.Errorf("extracting: %w", err)
	}

	restoredPath := filepath.Join(tempDir, base)
	if err := os.Rename(stashedPath, restoredPath); err != nil {
		return fmt.Errorf("extracting: restore input: %w", err)
	}
	j.DownloadedFile = restoredPath

	extractedPath, err := h.deps.Transcoder.ToMP3(ctx, restoredPath, ExtractBitrateKbps)
	if err != nil {
		if perr, ok := err.(*state.Error); ok {
			return perr
		}
		return state.NewToolError("EXTERNAL_TOOL_ERROR", "ffmpeg", err.Error())
	}

	j.ExtractedFile = extractedPath
	j.TransitionTo(state.MatchingMetadata)
	return nil
}
