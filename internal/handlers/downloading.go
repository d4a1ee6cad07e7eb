package handlers

import (
	"context"
	"fmt"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

// Downloading fetches audio for the selected source into a fresh per-job
// temp directory, or short-circuits to FINALIZED for dry_run jobs, per
// spec.md §4.3.
func (h *Handlers) Downloading(ctx context.Context, j *job.Job) error {
	if j.Options.DryRun {
		title, artist := identityTitleArtist(j)
		j.Result = job.Result{
			Success: true,
			Title:   title,
			Artist:  artist,
			Source:  "dry-run",
			Path:    "(not written)",
		}
		j.TransitionTo(state.Finalized)
		return nil
	}

	sourceURL, _ := j.SelectedSource["url"].(string)
	if sourceURL == "" {
		return state.NewError("NO_IDENTITY", state.Content, "no selected source to download")
	}

	tempDir := h.jobTempDir(j.JobID)
	if err := ensureFreshDir(tempDir); err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	j.TempDir = tempDir

	path, err := h.deps.Downloader.Fetch(ctx, sourceURL, tempDir, j.Options.Verbose)
	if err != nil {
		if perr, ok := err.(*state.Error); ok {
			return perr
		}
		return state.NewError("EXTERNAL_TOOL_ERROR", state.Content, err.Error())
	}

	j.DownloadedFile = path
	j.TransitionTo(state.Extracting)
	return nil
}

// identityTitleArtist pulls best-effort title/artist from whichever
// identity payload the job has so far — used by the dry-run short circuit,
// which never reaches MATCHING_METADATA.
func identityTitleArtist(j *job.Job) (string, string) {
	if j.IdentityHint == nil {
		return "", ""
	}
	artist := ""
	if len(j.IdentityHint.Artists) > 0 {
		artist = j.IdentityHint.Artists[0]
	}
	return j.IdentityHint.Title, artist
}
