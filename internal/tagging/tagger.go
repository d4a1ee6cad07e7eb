// Package tagging writes ID3 tags and embeds cover art into the finished
// MP3, and fetches cover art from the canonical metadata source. Both are
// external collaborators per spec.md §1 (file-format side effects).
package tagging

import "context"

// TagSet is the subset of canonical metadata TAGGING writes into the file,
// per spec.md §4.3: title, artist, album, track number (if present), year
// (first 4 chars of release date, if present).
type TagSet struct {
	Title       string
	Artist      string
	Album       string
	TrackNumber int // 0 means absent
	Year        string
	CoverArt    []byte // nil if unavailable; art failures are swallowed
}

// Tagger writes tags (and optional cover art) into an audio file in place.
type Tagger interface {
	Write(path string, tags TagSet) error
}

// ArtFetcher fetches cover art bytes from an artwork URL. Failures are
// swallowed by the caller (spec.md §7: "Album-art fetch failures are
// swallowed").
type ArtFetcher interface {
	FetchArt(ctx context.Context, artworkURL string) ([]byte, error)
}
