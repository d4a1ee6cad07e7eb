package handlers

import (
	"context"

	"truetrack/internal/job"
	"truetrack/internal/state"
	"truetrack/internal/tagging"
)

// Tagging writes title/artist/album/track/year tags into the extracted
// MP3 and best-effort embeds cover art (art failures are swallowed), per
// spec.md §4.3.
func (h *Handlers) Tagging(ctx context.Context, j *job.Job) error {
	if j.ExtractedFile == "" {
		return state.NewError("NO_FILE", state.Content, "no extracted file to tag")
	}

	meta := j.FinalMetadata
	title, _ := meta["trackName"].(string)
	artist, _ := meta["artistName"].(string)
	album, _ := meta["collectionName"].(string)
	releaseDate, _ := meta["releaseDate"].(string)
	trackNumber := intFromMetadata(meta["trackNumber"])

	year := ""
	if len(releaseDate) >= 4 {
		year = releaseDate[:4]
	}

	tags := tagging.TagSet{
		Title:       title,
		Artist:      artist,
		Album:       album,
		TrackNumber: trackNumber,
		Year:        year,
	}

	if artworkURL, ok := meta["artworkUrl100"].(string); ok && artworkURL != "" && h.deps.ArtFetcher != nil {
		if art, err := h.deps.ArtFetcher.FetchArt(ctx, artworkURL); err == nil {
			tags.CoverArt = art
		} else {
			j.Emit("cover art fetch failed, continuing without it")
		}
	}

	if err := h.deps.Tagger.Write(j.ExtractedFile, tags); err != nil {
		return state.NewError("EXTERNAL_TOOL_ERROR", state.Content, err.Error())
	}

	j.TransitionTo(state.Storing)
	return nil
}

func intFromMetadata(v interface{}) int {
	switch n := v.(type) {
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
