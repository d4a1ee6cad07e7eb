package api

import (
	"truetrack/internal/job"
	"truetrack/internal/state"
)

// InputRequired describes the pending human decision for a waiting job.
type InputRequired struct {
	Type    string `json:"type"`
	Choices int    `json:"choices"`
}

// ErrorInfo is the terminal-failure error shape exposed to API clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Status is the projection every job-mutating endpoint returns.
type Status struct {
	JobID          string                 `json:"job_id"`
	State          state.State            `json:"state"`
	Status         string                 `json:"status"`
	InputRequired  *InputRequired         `json:"input_required,omitempty"`
	Result         *job.Result            `json:"result,omitempty"`
	Error          *ErrorInfo             `json:"error,omitempty"`
	FinalMetadata  map[string]interface{} `json:"final_metadata,omitempty"`
	CanResume      bool                   `json:"can_resume"`
}

// buildStatus projects a Job onto its API-visible Status, per spec.md §6
// "Status projection".
func buildStatus(j *job.Job) Status {
	s := Status{
		JobID:     j.JobID,
		State:     j.CurrentState,
		CanResume: j.CurrentState == state.Cancelled && j.ResumeFrom != nil,
	}

	switch {
	case j.CurrentState == state.Failed:
		s.Status = "error"
		s.Error = &ErrorInfo{Code: j.ErrorCode, Message: j.ErrorMessage}
	case j.CurrentState == state.Cancelled:
		s.Status = "cancelled"
	case j.CurrentState == state.Finalized:
		s.Status = "success"
		result := j.Result
		s.Result = &result
	case j.CurrentState.IsPause():
		s.Status = "waiting"
		s.InputRequired = inputRequiredFor(j)
	default:
		s.Status = "running"
	}

	if j.FinalMetadata != nil {
		s.FinalMetadata = j.FinalMetadata
	}
	return s
}

func inputRequiredFor(j *job.Job) *InputRequired {
	switch j.CurrentState {
	case state.UserIntentSelection:
		return &InputRequired{Type: "identity", Choices: len(j.SourceCandidates)}
	case state.UserMetadataSelection:
		return &InputRequired{Type: "metadata", Choices: len(j.MetadataCandidates)}
	default:
		return nil
	}
}

// ListSummary is one row of GET /jobs.
type ListSummary struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	State     state.State `json:"state"`
	Title     string    `json:"title,omitempty"`
	Artist    string    `json:"artist,omitempty"`
	CreatedAt string    `json:"created_at"`
	CanResume bool      `json:"can_resume"`
}

func buildListSummary(j *job.Job) ListSummary {
	st := buildStatus(j)
	title, artist := summaryTitleArtist(j)
	return ListSummary{
		JobID:     j.JobID,
		Status:    st.Status,
		State:     j.CurrentState,
		Title:     title,
		Artist:    artist,
		CreatedAt: j.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		CanResume: st.CanResume,
	}
}

// summaryTitleArtist prefers the verified final_metadata (once available),
// falling back to the identity hint.
func summaryTitleArtist(j *job.Job) (string, string) {
	if j.FinalMetadata != nil {
		title, _ := j.FinalMetadata["trackName"].(string)
		artist, _ := j.FinalMetadata["artistName"].(string)
		if title != "" {
			return title, artist
		}
	}
	if j.IdentityHint != nil {
		artist := ""
		if len(j.IdentityHint.Artists) > 0 {
			artist = j.IdentityHint.Artists[0]
		}
		return j.IdentityHint.Title, artist
	}
	return "", ""
}
