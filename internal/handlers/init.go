package handlers

import (
	"context"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

// Init transitions a freshly created job to RESOLVING_IDENTITY.
func (h *Handlers) Init(ctx context.Context, j *job.Job) error {
	j.TransitionTo(state.ResolvingIdentity)
	return nil
}
