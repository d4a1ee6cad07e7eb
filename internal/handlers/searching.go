package handlers

import (
	"context"
	"fmt"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

// Searching is deterministic: it builds selected_source from identity_hint
// and moves straight to DOWNLOADING, per spec.md §4.3.
func (h *Handlers) Searching(ctx context.Context, j *job.Job) error {
	hint := j.IdentityHint
	if hint == nil {
		return state.NewError("NO_IDENTITY", state.Content, "no identity hint to search from")
	}

	j.SelectedSource = map[string]interface{}{
		"url":      fmt.Sprintf("https://www.youtube.com/watch?v=%s", hint.VideoID),
		"title":    hint.Title,
		"duration": hint.DurationMs / 1000,
		"uploader": hint.Uploader,
	}
	j.TransitionTo(state.Downloading)
	return nil
}
