// Package scoring implements the deterministic, integer-valued candidate
// scoring: Candidate scores source candidates (no handler calls it;
// RESOLVING_IDENTITY keeps the provider's order) and Metadata scores
// metadata candidates for MATCHING_METADATA, which drives the confidence
// threshold.
package scoring

import "strings"

// Candidate scores a source candidate against the expected artist, using
// title signals and duration heuristics. Ported from the scoring rules
// shared by the original Python core and its backend copy.
func Candidate(title, uploader, artist string, durationSeconds int) int {
	score := 0
	lowerTitle := strings.ToLower(title)

	if strings.Contains(lowerTitle, "official audio") {
		score += 40
	}
	if strings.Contains(lowerTitle, "remaster") {
		score += 5
	}
	if strings.Contains(lowerTitle, "lyrics") {
		score -= 30
	}
	if strings.Contains(lowerTitle, "live") {
		score -= 40
	}
	if strings.Contains(lowerTitle, "full album") {
		score -= 100
	}

	if artist != "" && strings.Contains(strings.ToLower(uploader), strings.ToLower(artist)) {
		score += 30
	}

	if durationSeconds >= 300 && durationSeconds <= 500 {
		score += 10
	} else if durationSeconds > 900 {
		score -= 80
	}

	return score
}

// Metadata scores a canonical-metadata candidate against the expected
// title/artist/duration. All comparisons are case-insensitive substring
// matches, matching score_metadata in the original source.
func Metadata(trackName, artistName string, trackTimeMillis int64, expectedTitle, expectedArtist string, expectedDurationSeconds int) int {
	score := 0

	if expectedTitle != "" && strings.Contains(strings.ToLower(trackName), strings.ToLower(expectedTitle)) {
		score += 40
	}
	if expectedArtist != "" && strings.Contains(strings.ToLower(artistName), strings.ToLower(expectedArtist)) {
		score += 40
	}
	if expectedDurationSeconds > 0 {
		diff := trackTimeMillis/1000 - int64(expectedDurationSeconds)
		if diff < 0 {
			diff = -diff
		}
		if diff < 5 {
			score += 20
		}
	}

	return score
}
