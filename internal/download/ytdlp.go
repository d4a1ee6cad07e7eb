// Package download fetches audio for a resolved source URL into a job's
// temp directory. The audio-download tool is an external collaborator per
// spec.md §1 — invoked as a black-box subprocess.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"truetrack/internal/state"
	"truetrack/internal/tool"
)

// EnvYTDLPPath overrides yt-dlp resolution, per §9 External tool resolution.
const EnvYTDLPPath = "TRUETRACK_YTDLP_PATH"

// Tool fetches best-effort audio for a source URL into destDir, returning
// the path of the single file produced.
type Tool interface {
	Fetch(ctx context.Context, sourceURL, destDir string, verbose bool) (string, error)
}

// YTDLP shells out to yt-dlp in best-audio mode, adapted from the teacher's
// downloader.go processDownload (same flag set, minus the in-process
// progress parsing — the pipeline only needs the final file, not live
// progress beyond last_message).
type YTDLP struct {
	binPath string
}

// NewYTDLP resolves the yt-dlp binary.
func NewYTDLP() (*YTDLP, error) {
	path, err := tool.Resolve("yt-dlp", EnvYTDLPPath)
	if err != nil {
		return nil, &state.Error{Code: "EXTERNAL_TOOL_NOT_FOUND", Category: state.Dependency, Tool: "yt-dlp", Message: err.Error()}
	}
	return &YTDLP{binPath: path}, nil
}

// Fetch downloads the best available audio track for sourceURL into destDir
// using the %(title)s.%(ext)s template spec.md §4.3 DOWNLOADING specifies.
func (y *YTDLP) Fetch(ctx context.Context, sourceURL, destDir string, verbose bool) (string, error) {
	outputTemplate := filepath.Join(destDir, "%(title)s.%(ext)s")

	cmd := exec.CommandContext(ctx, y.binPath,
		"--extract-audio",
		"--audio-format", "best",
		"--no-playlist",
		"--output", outputTemplate,
		sourceURL,
	)

	if verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	if err := cmd.Run(); err != nil {
		return "", &state.Error{Code: "EXTERNAL_TOOL_ERROR", Category: state.Content, Tool: "yt-dlp", Message: fmt.Sprintf("yt-dlp failed: %v", err)}
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("read temp dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return "", state.NewError("NO_FILE", state.Content, "download produced no file")
	}

	return filepath.Join(destDir, firstNonHidden(files)), nil
}

func firstNonHidden(files []string) string {
	for _, f := range files {
		if !strings.HasPrefix(f, ".") {
			return f
		}
	}
	return files[0]
}
