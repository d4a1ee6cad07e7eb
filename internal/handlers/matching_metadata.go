package handlers

import (
	"context"
	"sort"
	"strings"

	"truetrack/internal/job"
	"truetrack/internal/metadata"
	"truetrack/internal/scoring"
	"truetrack/internal/state"
)

// MatchingMetadata queries the canonical-metadata service, scores each
// candidate, and either proceeds to TAGGING, pauses for disambiguation, or
// falls back to ARCHIVING, per spec.md §4.3.
func (h *Handlers) MatchingMetadata(ctx context.Context, j *job.Job) error {
	if j.Options.ForceArchive {
		j.TransitionTo(state.Archiving)
		return nil
	}

	hint := j.IdentityHint
	if hint == nil {
		j.TransitionTo(state.Archiving)
		return nil
	}

	candidates, err := h.deps.Metadata.Search(ctx, hint.Title, strings.Join(hint.Artists, " "))
	if err != nil || len(candidates) == 0 {
		j.Emit("metadata search unavailable or empty; archiving")
		j.TransitionTo(state.Archiving)
		return nil
	}

	expectedDurationSeconds := int(hint.DurationMs / 1000)
	expectedArtist := strings.Join(hint.Artists, " ")

	scored := make([]scoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = scoredCandidate{
			candidate: c,
			score:     scoring.Metadata(c.TrackName, c.ArtistName, c.TrackTimeMillis, hint.Title, expectedArtist, expectedDurationSeconds),
		}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].score > scored[b].score
	})

	j.MetadataCandidates = make([]map[string]interface{}, len(scored))
	for i, sc := range scored {
		j.MetadataCandidates[i] = sc.candidate.ToMap()
	}

	top := scored[0]
	j.FinalMetadata = top.candidate.ToMap()
	confidence := top.score
	j.MetadataConfidence = &confidence

	if confidence < MetadataConfidenceThreshold {
		j.TransitionTo(state.UserMetadataSelection)
	} else {
		j.TransitionTo(state.Tagging)
	}
	return nil
}

type scoredCandidate struct {
	candidate metadata.Candidate
	score     int
}
