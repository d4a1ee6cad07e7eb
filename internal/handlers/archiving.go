package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

// archiveSubdir is where files with unverified metadata land, relative to
// the managed library root.
const archiveSubdir = "_Unidentified"

// Archiving moves the extracted file into <library_root>/_Unidentified,
// named from whatever identity_hint the job managed to resolve, per
// spec.md §4.3.
func (h *Handlers) Archiving(ctx context.Context, j *job.Job) error {
	if j.ExtractedFile == "" {
		return state.NewError("NO_FILE", state.Content, "no extracted file to archive")
	}

	libraryRoot, err := h.deps.Settings.LibraryRoot()
	if err != nil {
		return fmt.Errorf("archiving: resolve library root: %w", err)
	}
	archiveDir := filepath.Join(libraryRoot, archiveSubdir)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("archiving: create archive dir: %w", err)
	}

	title, artist := identityTitleArtist(j)
	if title == "" {
		title = j.RawQuery
	}
	filename := sanitizeFilename(fmt.Sprintf("%s - %s", title, artist)) + ".mp3"
	targetPath := filepath.Join(archiveDir, filename)

	if _, err := os.Stat(targetPath); err == nil {
		j.Result = job.Result{
			Success:  true,
			Archived: true,
			Title:    title,
			Artist:   artist,
			Path:     targetPath,
			Reason:   "already_exists",
		}
		j.TransitionTo(state.Finalized)
		return nil
	}

	if err := moveFile(j.ExtractedFile, targetPath); err != nil {
		return fmt.Errorf("archiving: move file: %w", err)
	}

	j.Result = job.Result{
		Success:  true,
		Archived: true,
		Title:    title,
		Artist:   artist,
		Path:     targetPath,
		Reason:   "Unverified metadata",
	}
	j.TransitionTo(state.Finalized)
	return nil
}
