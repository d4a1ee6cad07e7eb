// Package handlers implements the per-state pipeline handlers of spec.md
// §4.3: one function per non-pause/non-terminal state. Pause states
// (USER_INTENT_SELECTION, USER_METADATA_SELECTION) have no handler here —
// pipeline.Step no-ops on them by contract, and the HTTP /input endpoint
// mutates those jobs directly.
package handlers

import (
	"github.com/sirupsen/logrus"

	"truetrack/internal/download"
	"truetrack/internal/identity"
	"truetrack/internal/metadata"
	"truetrack/internal/pipeline"
	"truetrack/internal/settings"
	"truetrack/internal/state"
	"truetrack/internal/tagging"
	"truetrack/internal/transcode"
)

// ExtractBitrateKbps is the MP3 bitrate EXTRACTING transcodes to, per
// spec.md §4.3.
const ExtractBitrateKbps = 320

// MetadataConfidenceThreshold is the score below which MATCHING_METADATA
// pauses for human disambiguation instead of proceeding to TAGGING.
const MetadataConfidenceThreshold = 60

// Deps are the collaborators handlers call out to. All are the concrete
// external-collaborator adapters SPEC_FULL.md §4.3 names.
type Deps struct {
	Identity    identity.Provider
	Downloader  download.Tool
	Transcoder  transcode.Tool
	Metadata    metadata.Client
	Tagger      tagging.Tagger
	ArtFetcher  tagging.ArtFetcher
	Settings    *settings.Resolver
	TempDirRoot string
	Logger      *logrus.Logger
}

// Handlers wraps Deps and exposes one method per registrable state.
type Handlers struct {
	deps Deps
}

// New builds a Handlers bound to the given collaborators.
func New(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
		deps.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Handlers{deps: deps}
}

// Register binds every handler to its state in p.
func (h *Handlers) Register(p *pipeline.Pipeline) {
	p.Register(state.Init, h.Init)
	p.Register(state.ResolvingIdentity, h.ResolvingIdentity)
	p.Register(state.Searching, h.Searching)
	p.Register(state.Downloading, h.Downloading)
	p.Register(state.Extracting, h.Extracting)
	p.Register(state.MatchingMetadata, h.MatchingMetadata)
	p.Register(state.Tagging, h.Tagging)
	p.Register(state.Storing, h.Storing)
	p.Register(state.Archiving, h.Archiving)
}
