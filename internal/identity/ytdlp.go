package identity

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"truetrack/internal/state"
	"truetrack/internal/tool"
)

// EnvYTDLPPath overrides yt-dlp resolution, per §9 External tool resolution.
const EnvYTDLPPath = "TRUETRACK_YTDLP_PATH"

// searchResultLimit mirrors spec.md §4.3 RESOLVING_IDENTITY: keep the first
// 5 results as source_candidates.
const searchResultLimit = 5

// ytdlpSearchResult is the subset of yt-dlp's flat-playlist NDJSON output
// this provider needs, one object per matched video.
type ytdlpSearchResult struct {
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	ID       string  `json:"id"`
	Duration float64 `json:"duration"`
	Album    string  `json:"album"`
}

// YTDLPProvider resolves queries via `yt-dlp ytsearchN:<query> --dump-json
// --flat-playlist`, grounded on the teacher's own yt-dlp --dump-json
// metadata probe in downloader.go's getMetadata.
type YTDLPProvider struct {
	binPath string
}

// NewYTDLPProvider resolves the yt-dlp binary (bundled, env override, or
// PATH) and returns a ready-to-use provider.
func NewYTDLPProvider() (*YTDLPProvider, error) {
	path, err := tool.Resolve("yt-dlp", EnvYTDLPPath)
	if err != nil {
		return nil, err
	}
	return &YTDLPProvider{binPath: path}, nil
}

// Resolve runs a flat-playlist search and returns up to searchResultLimit
// candidates in yt-dlp's own ranking order.
func (p *YTDLPProvider) Resolve(ctx context.Context, query string) ([]Candidate, error) {
	searchExpr := fmt.Sprintf("ytsearch%d:%s", searchResultLimit, query)
	cmd := exec.CommandContext(ctx, p.binPath,
		"--dump-json",
		"--flat-playlist",
		"--no-warnings",
		searchExpr,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &state.Error{Code: "YTMUSIC_ERROR", Category: state.Transient, Tool: "yt-dlp", Message: strings.TrimSpace(stderr.String())}
	}

	var candidates []Candidate
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() && len(candidates) < searchResultLimit {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r ytdlpSearchResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue
		}
		uploader := r.Uploader
		if uploader == "" {
			uploader = r.Channel
		}
		candidates = append(candidates, Candidate{
			Title:           r.Title,
			Artists:         []string{uploader},
			Album:           r.Album,
			VideoID:         r.ID,
			Uploader:        uploader,
			DurationSeconds: int(r.Duration),
		})
	}

	return candidates, nil
}
