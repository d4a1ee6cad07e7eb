// Package metadata searches the canonical-metadata service (iTunes Search
// API) that MATCHING_METADATA scores candidates against. An external
// collaborator per spec.md §1 — an HTTP client only.
package metadata

import "context"

// Candidate is one canonical metadata record.
type Candidate struct {
	TrackName       string `json:"trackName"`
	ArtistName      string `json:"artistName"`
	CollectionName  string `json:"collectionName"`
	TrackNumber     int    `json:"trackNumber"`
	ReleaseDate     string `json:"releaseDate"`
	TrackTimeMillis int64  `json:"trackTimeMillis"`
	ArtworkURL100   string `json:"artworkUrl100"`
}

// ToMap converts a Candidate to the opaque map shape job.MetadataCandidates
// stores.
func (c Candidate) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"trackName":       c.TrackName,
		"artistName":      c.ArtistName,
		"collectionName":  c.CollectionName,
		"trackNumber":     c.TrackNumber,
		"releaseDate":     c.ReleaseDate,
		"trackTimeMillis": c.TrackTimeMillis,
		"artworkUrl100":   c.ArtworkURL100,
	}
}

// Client searches the canonical-metadata service.
type Client interface {
	Search(ctx context.Context, title, artist string) ([]Candidate, error)
}
