// Package transcode converts a downloaded audio file to MP3 using ffmpeg,
// another external collaborator invoked as a black-box subprocess per
// spec.md §1.
package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"truetrack/internal/state"
	"truetrack/internal/tool"
)

// EnvFFmpegPath overrides ffmpeg resolution, per §9 External tool resolution.
const EnvFFmpegPath = "TRUETRACK_FFMPEG_PATH"

// Tool produces an MP3 from srcPath at the given bitrate.
type Tool interface {
	ToMP3(ctx context.Context, srcPath string, kbps int) (string, error)
}

// FFmpeg is a thin os/exec wrapper, in the teacher's own subprocess idiom
// (downloader.go shells out to yt-dlp the same way: resolve binary, build
// args, run, check exit status).
type FFmpeg struct {
	binPath string
}

// NewFFmpeg resolves the ffmpeg binary.
func NewFFmpeg() (*FFmpeg, error) {
	path, err := tool.Resolve("ffmpeg", EnvFFmpegPath)
	if err != nil {
		return nil, &state.Error{Code: "EXTERNAL_TOOL_NOT_FOUND", Category: state.Dependency, Tool: "ffmpeg", Message: err.Error()}
	}
	return &FFmpeg{binPath: path}, nil
}

// ToMP3 transcodes srcPath to an MP3 at kbps, written next to the input.
func (f *FFmpeg) ToMP3(ctx context.Context, srcPath string, kbps int) (string, error) {
	ext := filepath.Ext(srcPath)
	base := strings.TrimSuffix(srcPath, ext)
	dstPath := base + ".mp3"

	cmd := exec.CommandContext(ctx, f.binPath,
		"-y",
		"-i", srcPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", kbps),
		dstPath,
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &state.Error{
			Code:     "EXTERNAL_TOOL_ERROR",
			Category: state.Dependency,
			Tool:     "ffmpeg",
			Message:  fmt.Sprintf("ffmpeg failed: %v: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	return dstPath, nil
}
