// Package state defines the pipeline state enum and the failure shape
// handlers raise. It has no dependency on the job model so both job and
// pipeline can depend on it without a cycle.
package state

import "strings"

// State is one node in the job lifecycle graph.
type State string

const (
	Init                  State = "INIT"
	ResolvingIdentity     State = "RESOLVING_IDENTITY"
	UserIntentSelection   State = "USER_INTENT_SELECTION"
	Searching             State = "SEARCHING"
	Downloading           State = "DOWNLOADING"
	Extracting            State = "EXTRACTING"
	MatchingMetadata      State = "MATCHING_METADATA"
	UserMetadataSelection State = "USER_METADATA_SELECTION"
	Tagging               State = "TAGGING"
	Storing               State = "STORING"
	Archiving             State = "ARCHIVING"
	Finalized             State = "FINALIZED"
	Failed                State = "FAILED"
	Cancelled             State = "CANCELLED"
)

// IsTerminal reports whether a job in this state will never run again.
func (s State) IsTerminal() bool {
	switch s {
	case Finalized, Failed, Cancelled:
		return true
	default:
		return false
	}
}

// IsPause reports whether this state is waiting on a human decision.
func (s State) IsPause() bool {
	return strings.HasPrefix(string(s), "USER_")
}

// IsRunnable reports whether a pipeline step should be attempted in this
// state: neither terminal nor a pause.
func (s State) IsRunnable() bool {
	return !s.IsTerminal() && !s.IsPause()
}
