// Command truetrack-run drives a single query through the pipeline to
// completion in-process, without a server or worker poll loop. It is a
// non-interactive smoke-test harness, not a front-end: a job that pauses
// for user input exits with code 2 rather than prompting.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"truetrack/internal/download"
	"truetrack/internal/handlers"
	"truetrack/internal/identity"
	"truetrack/internal/job"
	"truetrack/internal/metadata"
	"truetrack/internal/pipeline"
	"truetrack/internal/settings"
	"truetrack/internal/state"
	"truetrack/internal/store"
	"truetrack/internal/tagging"
	"truetrack/internal/transcode"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitPaused  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	ask := flag.Bool("ask", false, "always ask the user to choose the intended recording")
	verbose := flag.Bool("verbose", false, "show engine logs")
	dryRun := flag.Bool("dry-run", false, "run the pipeline without downloading or writing files")
	forceArchive := flag.Bool("force-archive", false, "skip metadata matching and archive directly")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: truetrack-run [flags] <query>")
		return exitFailure
	}
	query := flag.Arg(0)

	if err := checkDependencies(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}

	dbPath := os.Getenv("TRUETRACK_DB_PATH")
	if dbPath == "" {
		dbPath = "./truetrack.db"
	}
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening store: %v\n", err)
		return exitFailure
	}
	defer st.Close()

	resolver := settings.NewResolver(st)

	identityProvider, err := identity.NewYTDLPProvider()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error resolving yt-dlp: %v\n", err)
		return exitFailure
	}
	downloader, err := download.NewYTDLP()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error resolving yt-dlp downloader: %v\n", err)
		return exitFailure
	}
	transcoder, err := transcode.NewFFmpeg()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error resolving ffmpeg: %v\n", err)
		return exitFailure
	}

	deps := handlers.Deps{
		Identity:    identityProvider,
		Downloader:  downloader,
		Transcoder:  transcoder,
		Metadata:    metadata.NewITunesClient(),
		Tagger:      tagging.NewID3Writer(),
		ArtFetcher:  tagging.NewHTTPArtFetcher(),
		Settings:    resolver,
		TempDirRoot: os.TempDir(),
		Logger:      logger,
	}
	h := handlers.New(deps)

	p := pipeline.New()
	h.Register(p)

	j := job.New(query, job.Options{
		Ask:          *ask,
		ForceArchive: *forceArchive,
		DryRun:       *dryRun,
		Verbose:      *verbose,
	})
	j.TransitionTo(state.ResolvingIdentity)

	ctx := context.Background()
	for !j.CurrentState.IsTerminal() && !j.CurrentState.IsPause() {
		if err := p.Step(ctx, j); err != nil {
			if perr, ok := err.(*state.Error); ok {
				j.Fail(perr.Code, perr.Message)
				break
			}
			fmt.Fprintf(os.Stderr, "unexpected pipeline error: %v\n", err)
			return exitFailure
		}
	}

	if err := st.Create(j); err != nil {
		fmt.Fprintf(os.Stderr, "error persisting job: %v\n", err)
		return exitFailure
	}

	renderSummary(j)

	switch {
	case j.CurrentState.IsPause():
		return exitPaused
	case j.CurrentState == state.Finalized:
		return exitSuccess
	default:
		return exitFailure
	}
}

// checkDependencies mirrors ingest.py's check_dependencies: yt-dlp and
// ffmpeg must both be on PATH (or overridden via TRUETRACK_YTDLP_PATH /
// TRUETRACK_FFMPEG_PATH, resolved later by the tool package) before
// attempting a run.
func checkDependencies() error {
	var missing []string
	if os.Getenv(identity.EnvYTDLPPath) == "" {
		if _, err := exec.LookPath("yt-dlp"); err != nil {
			missing = append(missing, "yt-dlp")
		}
	}
	if os.Getenv(transcode.EnvFFmpegPath) == "" {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			missing = append(missing, "ffmpeg")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing dependencies: %v (install them and ensure they are in PATH)", missing)
	}
	return nil
}

func renderSummary(j *job.Job) {
	switch {
	case j.CurrentState == state.Finalized && j.Result.Archived:
		fmt.Printf("archived: %s - %s -> %s (%s)\n", j.Result.Artist, j.Result.Title, j.Result.Path, j.Result.Reason)
	case j.CurrentState == state.Finalized:
		fmt.Printf("stored: %s - %s -> %s\n", j.Result.Artist, j.Result.Title, j.Result.Path)
	case j.CurrentState.IsPause():
		fmt.Printf("paused for input: %s (job_id=%s)\n", j.CurrentState, j.JobID)
	case j.CurrentState == state.Failed:
		fmt.Printf("failed: %s: %s\n", j.ErrorCode, j.ErrorMessage)
	}
}
