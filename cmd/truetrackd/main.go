// Command truetrackd runs the TrueTrack HTTP API and worker runtime in one
// process: submit a query over HTTP, and the background worker advances it
// through the pipeline until it lands in a terminal state.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"truetrack/internal/api"
	"truetrack/internal/config"
	"truetrack/internal/download"
	"truetrack/internal/handlers"
	"truetrack/internal/identity"
	"truetrack/internal/librarywatch"
	"truetrack/internal/metadata"
	"truetrack/internal/pipeline"
	"truetrack/internal/settings"
	"truetrack/internal/store"
	"truetrack/internal/tagging"
	"truetrack/internal/transcode"
	"truetrack/internal/worker"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("TRUETRACK_CONFIG_FILE")
	if configPath == "" {
		configPath = "./config.toml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}
	applyEnvOverrides(cfg)

	logger := newLogger(cfg)

	st, err := store.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatalf("error opening store: %v", err)
	}
	defer st.Close()

	resolver := settings.NewResolver(st)

	identityProvider, err := identity.NewYTDLPProvider()
	if err != nil {
		logger.Fatalf("error resolving yt-dlp: %v", err)
	}
	downloader, err := download.NewYTDLP()
	if err != nil {
		logger.Fatalf("error resolving yt-dlp downloader: %v", err)
	}
	transcoder, err := transcode.NewFFmpeg()
	if err != nil {
		logger.Fatalf("error resolving ffmpeg: %v", err)
	}

	deps := handlers.Deps{
		Identity:    identity.NewCachingProvider(identityProvider),
		Downloader:  downloader,
		Transcoder:  transcoder,
		Metadata:    metadata.NewCachingClient(metadata.NewITunesClient()),
		Tagger:      tagging.NewID3Writer(),
		ArtFetcher:  tagging.NewHTTPArtFetcher(),
		Settings:    resolver,
		TempDirRoot: os.TempDir(),
		Logger:      logger,
	}
	h := handlers.New(deps)

	p := pipeline.New()
	h.Register(p)

	rt := worker.New(st, p, logger)
	rt.Start()
	defer rt.Stop()

	libraryRoot, err := resolver.LibraryRoot()
	if err != nil {
		logger.Fatalf("error resolving library root: %v", err)
	}
	libWatcher := librarywatch.New(libraryRoot, logger)
	if err := libWatcher.Start(); err != nil {
		logger.Warnf("library watcher failed to start: %v", err)
	} else {
		defer libWatcher.Stop()
	}

	allowedOrigins := parseAllowedOrigins(cfg)
	srv := api.NewServer(st, resolver, allowedOrigins, logger)

	httpServer := &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Infof("truetrackd listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warnf("http server shutdown error: %v", err)
	}
	rt.Stop()
}

// applyEnvOverrides applies spec.md §6 Environment: TRUETRACK_HOST,
// TRUETRACK_PORT, TRUETRACK_LOG_LEVEL, and TRUETRACK_DB_PATH always win
// over config.toml.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("TRUETRACK_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TRUETRACK_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("TRUETRACK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRUETRACK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			logger.SetOutput(f)
		} else {
			logger.Warnf("could not open log file %s: %v", cfg.Logging.File, err)
		}
	}

	return logger
}

func parseAllowedOrigins(cfg *config.Config) []string {
	if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		return splitComma(env)
	}
	return cfg.Server.AllowedOrigins
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
