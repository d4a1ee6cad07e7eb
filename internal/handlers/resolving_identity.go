package handlers

import (
	"context"
	"strings"

	"truetrack/internal/identity"
	"truetrack/internal/job"
	"truetrack/internal/state"
)

// ResolvingIdentity calls the identity provider with raw_query, keeps the
// first 5 results as source_candidates, and either pauses for user
// disambiguation or auto-adopts the top candidate, per spec.md §4.3.
func (h *Handlers) ResolvingIdentity(ctx context.Context, j *job.Job) error {
	candidates, err := h.deps.Identity.Resolve(ctx, j.RawQuery)
	if err != nil {
		if perr, ok := err.(*state.Error); ok {
			return perr
		}
		return state.NewError("YTMUSIC_ERROR", state.Transient, err.Error())
	}
	if len(candidates) == 0 {
		return state.NewError("NO_RESULTS", state.Content, "identity provider returned no candidates")
	}

	j.SourceCandidates = make([]map[string]interface{}, 0, len(candidates))
	for _, c := range candidates {
		j.SourceCandidates = append(j.SourceCandidates, c.ToMap())
	}

	if j.Options.Ask || isAmbiguous(j.RawQuery, candidates) {
		j.TransitionTo(state.UserIntentSelection)
		return nil
	}

	top := candidates[0]
	j.IdentityHint = &job.IdentityHint{
		Title:      top.Title,
		Artists:    top.Artists,
		Album:      top.Album,
		DurationMs: int64(top.DurationSeconds) * 1000,
		VideoID:    top.VideoID,
		Uploader:   top.Uploader,
		Confidence: 80,
	}
	j.TransitionTo(state.Searching)
	return nil
}

// isAmbiguous reports whether more than one candidate was returned and the
// query mentions none of the top candidate's artist names, case-insensitive.
func isAmbiguous(rawQuery string, candidates []identity.Candidate) bool {
	if len(candidates) <= 1 {
		return false
	}
	lowerQuery := strings.ToLower(rawQuery)
	for _, artist := range candidates[0].Artists {
		if artist == "" {
			continue
		}
		if strings.Contains(lowerQuery, strings.ToLower(artist)) {
			return false
		}
	}
	return true
}
