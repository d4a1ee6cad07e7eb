package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

// Storing moves the tagged file into the managed library, naming it
// "<title> - <artist>.mp3". A pre-existing file at that path is treated as
// already_exists rather than an error, per spec.md §4.3.
func (h *Handlers) Storing(ctx context.Context, j *job.Job) error {
	if j.ExtractedFile == "" {
		return state.NewError("NO_FILE", state.Content, "no tagged file to store")
	}

	libraryRoot, err := h.deps.Settings.LibraryRoot()
	if err != nil {
		return fmt.Errorf("storing: resolve library root: %w", err)
	}

	title, _ := j.FinalMetadata["trackName"].(string)
	artist, _ := j.FinalMetadata["artistName"].(string)
	album, _ := j.FinalMetadata["collectionName"].(string)
	filename := sanitizeFilename(fmt.Sprintf("%s - %s", title, artist)) + ".mp3"
	targetPath := filepath.Join(libraryRoot, filename)

	if _, err := os.Stat(targetPath); err == nil {
		j.Result = job.Result{
			Success: true,
			Title:   title,
			Artist:  artist,
			Album:   album,
			Source:  "iTunes (verified)",
			Path:    targetPath,
			Reason:  "already_exists",
		}
		j.TransitionTo(state.Finalized)
		return nil
	}

	if err := os.MkdirAll(libraryRoot, 0o755); err != nil {
		return fmt.Errorf("storing: create library root: %w", err)
	}
	if err := moveFile(j.ExtractedFile, targetPath); err != nil {
		return fmt.Errorf("storing: move file: %w", err)
	}

	j.Result = job.Result{
		Success: true,
		Title:   title,
		Artist:  artist,
		Album:   album,
		Source:  "iTunes (verified)",
		Path:    targetPath,
	}
	j.TransitionTo(state.Finalized)
	return nil
}
