package api

import (
	"fmt"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

// applyInput mutates a paused job per the chosen candidate index. Neither
// USER_INTENT_SELECTION nor USER_METADATA_SELECTION has a pipeline handler
// — this is the controller's side of the pause, per spec.md §4.3.
func applyInput(j *job.Job, choice int) error {
	switch j.CurrentState {
	case state.UserIntentSelection:
		return applyIdentityChoice(j, choice)
	case state.UserMetadataSelection:
		return applyMetadataChoice(j, choice)
	default:
		return fmt.Errorf("job is not waiting for input (state=%s)", j.CurrentState)
	}
}

func applyIdentityChoice(j *job.Job, choice int) error {
	if choice >= len(j.SourceCandidates) {
		return fmt.Errorf("choice %d out of range (have %d candidates)", choice, len(j.SourceCandidates))
	}
	chosen := j.SourceCandidates[choice]

	j.IdentityHint = &job.IdentityHint{
		Title:      stringField(chosen, "title"),
		Artists:    stringSliceField(chosen, "artists"),
		Album:      stringField(chosen, "album"),
		DurationMs: int64(intField(chosen, "duration")) * 1000,
		VideoID:    stringField(chosen, "video_id"),
		Uploader:   stringField(chosen, "uploader"),
		Confidence: 100,
	}
	j.TransitionTo(state.Searching)
	return nil
}

func applyMetadataChoice(j *job.Job, choice int) error {
	if choice >= len(j.MetadataCandidates) {
		return fmt.Errorf("choice %d out of range (have %d candidates)", choice, len(j.MetadataCandidates))
	}
	j.FinalMetadata = j.MetadataCandidates[choice]
	confidence := 100
	j.MetadataConfidence = &confidence
	j.TransitionTo(state.Tagging)
	return nil
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func intField(m map[string]interface{}, key string) int {
	switch n := m[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func stringSliceField(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		if direct, ok := m[key].([]string); ok {
			return direct
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
